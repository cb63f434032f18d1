package commands

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/branchstats/internal/render"
	"github.com/Sumatoshi-tech/branchstats/pkg/branchstats"
	"github.com/Sumatoshi-tech/branchstats/pkg/treeseq"
)

// errTreeCountMismatch means the two engines saw a different number of trees.
var errTreeCountMismatch = errors.New("tree count differs between engines")

// VerifyCommand holds the flags of the verify command.
type VerifyCommand struct {
	app *app

	groups     []string
	conditions []string
	tolerance  float64
	precision  int
}

func newVerifyCommand(a *app) *cobra.Command {
	vc := &VerifyCommand{app: a}

	cmd := &cobra.Command{
		Use:   "verify FILE",
		Short: "Check the incremental engine against full traversal",
		Long: `Run every condition through both the incremental engine and the naive
per-tree traversal, and compare the totals and the per-tree counted lengths.
Exits with status 2 when any value differs beyond the tolerance.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return vc.run(cmd, args[0])
		},
	}

	cmd.Flags().StringArrayVarP(&vc.groups, "group", "g", nil, "sample group name, repeatable (default: all groups in the file)")
	cmd.Flags().StringArrayVarP(&vc.conditions, "condition", "c", nil, "condition expression, repeatable (default from config)")
	cmd.Flags().Float64Var(&vc.tolerance, "tolerance", math.NaN(), "relative tolerance (default from config)")
	cmd.Flags().IntVar(&vc.precision, "precision", unsetPrecision, "decimals shown (default from config)")

	return cmd
}

func (vc *VerifyCommand) run(cmd *cobra.Command, path string) (err error) {
	a := vc.app

	ctx, span := a.tracer().Start(cmd.Context(), "branchstats.cli.verify",
		trace.WithAttributes(attribute.String("path", path)))
	defer span.End()

	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "verify failed")
		}
	}()

	ts, err := a.loadSequence(ctx, path)
	if err != nil {
		return err
	}

	names := vc.groups
	if len(names) == 0 {
		names = a.cfg.Statistic.Groups
	}

	groups, _, err := resolveGroups(ts, names)
	if err != nil {
		return err
	}

	exprs := vc.conditions
	if len(exprs) == 0 {
		exprs = []string{a.cfg.Statistic.Condition}
	}

	conds, err := parseConditions(exprs, groups)
	if err != nil {
		return err
	}

	tolerance := vc.tolerance
	if math.IsNaN(tolerance) {
		tolerance = a.cfg.Verify.Tolerance
	}

	if tolerance < 0 {
		return fmt.Errorf("tolerance %g: must be non-negative", tolerance)
	}

	precision := vc.precision
	if precision == unsetPrecision {
		precision = a.cfg.Output.Precision
	}

	failed := 0

	for i, expr := range exprs {
		report, err := vc.compare(ctx, ts, groups, conds[i])
		if err != nil {
			return fmt.Errorf("statistic %q: %w", expr, err)
		}

		report.Statistic = expr
		report.Tolerance = tolerance

		if !report.OK() {
			failed++
		}

		err = render.Verify(cmd.OutOrStdout(), report, precision)
		if err != nil {
			return err
		}
	}

	span.SetAttributes(attribute.Int("failed", failed))

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d statistics", ErrVerifyFailed, failed, len(exprs))
	}

	return nil
}

func (vc *VerifyCommand) compare(
	ctx context.Context, ts *treeseq.TreeSequence, groups branchstats.LeafGroups, cond branchstats.Condition,
) (render.VerifyReport, error) {
	logger := branchstats.WithLogger(vc.app.logger())

	var incremental, naive []branchstats.TreeRecord

	res, err := branchstats.Branch(ctx, ts, groups, cond, logger,
		branchstats.WithTreeObserver(func(r branchstats.TreeRecord) { incremental = append(incremental, r) }))
	if err != nil {
		return render.VerifyReport{}, err
	}

	total, err := branchstats.NodeIter(ts, groups, cond, branchstats.MethodLength, logger,
		branchstats.WithTreeObserver(func(r branchstats.TreeRecord) { naive = append(naive, r) }))
	if err != nil {
		return render.VerifyReport{}, err
	}

	if len(incremental) != len(naive) {
		return render.VerifyReport{}, fmt.Errorf("%w: %d incremental, %d naive",
			errTreeCountMismatch, len(incremental), len(naive))
	}

	report := render.VerifyReport{
		Naive:       total,
		Incremental: res.Value,
		Trees:       make([]render.TreeCheck, len(naive)),
	}

	for j, n := range naive {
		report.Trees[j] = render.TreeCheck{
			Index:       n.Index,
			Left:        n.Left,
			Right:       n.Right,
			Naive:       n.Value,
			Incremental: incremental[j].Value,
		}
	}

	return report, nil
}
