package branchstats

import (
	"context"
	"fmt"
	"iter"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/branchstats/pkg/treeseq"
)

// tracerName is the OTel tracer name for the statistics package.
const tracerName = "branchstats"

// Compute runs an Engine over diffs and returns the finished result. The
// context is checked between events.
func Compute(
	ctx context.Context, diffs iter.Seq[treeseq.DiffEvent], nodeTimes []float64, sequenceLength float64,
	groups LeafGroups, cond Condition, opts ...Option,
) (Result, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "branchstats.compute",
		trace.WithAttributes(
			attribute.Int("branchstats.nodes", len(nodeTimes)),
			attribute.Int("branchstats.groups", len(groups)),
			attribute.Float64("branchstats.sequence_length", sequenceLength),
		))
	defer span.End()

	res, err := compute(ctx, diffs, nodeTimes, sequenceLength, groups, cond, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return Result{}, err
	}

	span.SetAttributes(
		attribute.Int("branchstats.trees", res.Trees),
		attribute.Int("branchstats.ancestor_visits", res.Stats.AncestorVisits),
		attribute.Bool("branchstats.truncated", res.Truncated),
		attribute.Float64("branchstats.value", res.Value),
	)

	return res, nil
}

func compute(
	ctx context.Context, diffs iter.Seq[treeseq.DiffEvent], nodeTimes []float64, sequenceLength float64,
	groups LeafGroups, cond Condition, opts []Option,
) (Result, error) {
	if !(sequenceLength > 0) {
		return Result{}, fmt.Errorf("%w: %g", ErrInvalidSequenceLength, sequenceLength)
	}

	engine, err := NewEngine(nodeTimes, groups, cond, opts...)
	if err != nil {
		return Result{}, err
	}

	for ev := range diffs {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("stopped after %d trees: %w", engine.Trees(), err)
		}

		if err := engine.Apply(ev); err != nil {
			return Result{}, err
		}
	}

	return engine.Finish(sequenceLength)
}

// Branch computes the length statistic of ts incrementally.
func Branch(ctx context.Context, ts Sequence, groups LeafGroups, cond Condition, opts ...Option) (Result, error) {
	return Compute(ctx, ts.Diffs(), ts.NodeTimes(), ts.SequenceLength(), groups, cond, opts...)
}

// StatSpec names one statistic for ComputeAll.
type StatSpec struct {
	Name      string
	Groups    LeafGroups
	Condition Condition
}

// ComputeAll computes several statistics over ts concurrently, one diff pass
// each, keyed by StatSpec name. The first failure cancels the remaining passes.
func ComputeAll(ctx context.Context, ts Sequence, specs []StatSpec, opts ...Option) (map[string]Result, error) {
	seen := make(map[string]bool, len(specs))

	for _, spec := range specs {
		if seen[spec.Name] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateSpec, spec.Name)
		}

		seen[spec.Name] = true
	}

	results := make([]Result, len(specs))

	g, gctx := errgroup.WithContext(ctx)

	for i, spec := range specs {
		g.Go(func() error {
			res, err := Branch(gctx, ts, spec.Groups, spec.Condition, opts...)
			if err != nil {
				return fmt.Errorf("statistic %q: %w", spec.Name, err)
			}

			results[i] = res

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]Result, len(specs))
	for i, spec := range specs {
		out[spec.Name] = results[i]
	}

	return out, nil
}
