package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/branchstats/internal/render"
	"github.com/Sumatoshi-tech/branchstats/pkg/branchstats"
	"github.com/Sumatoshi-tech/branchstats/pkg/treeseq"
)

type pathOutput struct {
	format    string
	precision int
}

func (o *pathOutput) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.format, "format", "f", "", "output format: table, json, yaml (default from config)")
	cmd.Flags().IntVar(&o.precision, "precision", unsetPrecision, "decimals shown in tables (default from config)")
}

func newDiversityCommand(a *app) *cobra.Command {
	var out pathOutput

	cmd := &cobra.Command{
		Use:   "diversity FILE X Y",
		Short: "Mean path length between two samples",
		Long: `Average, over the sequence, of the branch length on the path between
samples X and Y, weighted by the span of each tree.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runPathStatistic(cmd, "diversity", args[0], args[1:], out,
				func(ts *treeseq.TreeSequence, n []int) (float64, error) {
					return branchstats.Diversity(ts, n[0], n[1])
				})
		},
	}

	out.bind(cmd)

	return cmd
}

func newYStatCommand(a *app) *cobra.Command {
	var out pathOutput

	cmd := &cobra.Command{
		Use:   "ystat FILE X Y Z",
		Short: "Three-sample Y statistic",
		Long: `Average, over the sequence, of the length of the branch leading from X
towards the two other samples before it joins their lineage.`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runPathStatistic(cmd, "ystat", args[0], args[1:], out,
				func(ts *treeseq.TreeSequence, n []int) (float64, error) {
					return branchstats.YStat(ts, n[0], n[1], n[2])
				})
		},
	}

	out.bind(cmd)

	return cmd
}

func (a *app) runPathStatistic(
	cmd *cobra.Command, name, path string, nodeArgs []string, out pathOutput,
	stat func(*treeseq.TreeSequence, []int) (float64, error),
) (err error) {
	ctx, span := a.tracer().Start(cmd.Context(), "branchstats.cli."+name,
		trace.WithAttributes(attribute.String("path", path)))
	defer span.End()

	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, name+" failed")
		}
	}()

	nodes, err := parseNodes(nodeArgs)
	if err != nil {
		return err
	}

	value, ts, err := a.pathValue(ctx, path, nodes, stat)
	if err != nil {
		return err
	}

	precision := out.precision
	if precision == unsetPrecision {
		precision = a.cfg.Output.Precision
	}

	return render.Results(cmd.OutOrStdout(), pick(out.format, a.cfg.Output.Format), precision, []render.Row{{
		Name:           fmt.Sprintf("%s%v", name, nodes),
		Method:         string(branchstats.MethodLength),
		Engine:         engineTree,
		Value:          value,
		Covered:        ts.SequenceLength(),
		SequenceLength: ts.SequenceLength(),
	}})
}

func (a *app) pathValue(
	ctx context.Context, path string, nodes []int,
	stat func(*treeseq.TreeSequence, []int) (float64, error),
) (float64, *treeseq.TreeSequence, error) {
	ts, err := a.loadSequence(ctx, path)
	if err != nil {
		return 0, nil, err
	}

	value, err := stat(ts, nodes)
	if err != nil {
		return 0, nil, err
	}

	return value, ts, nil
}
