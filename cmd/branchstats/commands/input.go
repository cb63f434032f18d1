package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/branchstats/pkg/branchstats"
	"github.com/Sumatoshi-tech/branchstats/pkg/treeseq"
)

// allSamplesGroup names the implicit group used when a file defines none.
const allSamplesGroup = "samples"

func (a *app) loadSequence(ctx context.Context, path string) (*treeseq.TreeSequence, error) {
	_, span := a.tracer().Start(ctx, "branchstats.load", trace.WithAttributes(attribute.String("path", path)))
	defer span.End()

	ts, err := treeseq.Load(path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")

		return nil, err
	}

	span.SetAttributes(
		attribute.Int("nodes", ts.NumNodes()),
		attribute.Int("edges", ts.NumEdges()),
	)

	a.logger().Debug("loaded tree sequence", "path", path,
		"nodes", humanize.Comma(int64(ts.NumNodes())),
		"edges", humanize.Comma(int64(ts.NumEdges())),
		"sequence_length", ts.SequenceLength())

	return ts, nil
}

// resolveGroups picks the leaf groups for a run: the named groups, else every
// group of the file, else a single group holding all samples.
func resolveGroups(ts *treeseq.TreeSequence, names []string) (branchstats.LeafGroups, []string, error) {
	if len(names) > 0 {
		groups := make(branchstats.LeafGroups, len(names))

		for i, name := range names {
			leaves, err := ts.Group(name)
			if err != nil {
				return nil, nil, err
			}

			groups[i] = leaves
		}

		return groups, names, nil
	}

	if fileGroups := ts.Groups(); len(fileGroups) > 0 {
		groups := make(branchstats.LeafGroups, len(fileGroups))
		resolved := make([]string, len(fileGroups))

		for i, g := range fileGroups {
			groups[i] = g.Leaves
			resolved[i] = g.Name
		}

		return groups, resolved, nil
	}

	return branchstats.LeafGroups{ts.Samples()}, []string{allSamplesGroup}, nil
}

// parseConditions compiles each expression against the group sizes.
func parseConditions(exprs []string, groups branchstats.LeafGroups) ([]branchstats.Condition, error) {
	sizes := branchstats.GroupSizes(groups)
	conds := make([]branchstats.Condition, len(exprs))

	for i, expr := range exprs {
		cond, err := branchstats.ParseCondition(expr, sizes)
		if err != nil {
			return nil, err
		}

		conds[i] = cond
	}

	return conds, nil
}

// parseNodes converts positional node arguments.
func parseNodes(args []string) ([]int, error) {
	nodes := make([]int, len(args))

	for i, arg := range args {
		u, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", arg, err)
		}

		nodes[i] = u
	}

	return nodes, nil
}

// pick returns the flag value unless it is empty.
func pick(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}

	return configValue
}
