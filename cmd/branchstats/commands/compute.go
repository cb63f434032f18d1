package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/branchstats/internal/observability"
	"github.com/Sumatoshi-tech/branchstats/internal/render"
	"github.com/Sumatoshi-tech/branchstats/pkg/branchstats"
	"github.com/Sumatoshi-tech/branchstats/pkg/treeseq"
)

// unsetPrecision marks the precision flag as not given.
const unsetPrecision = -1

// ComputeCommand holds the flags of the compute command.
type ComputeCommand struct {
	app *app

	groups      []string
	conditions  []string
	method      string
	naive       bool
	format      string
	precision   int
	metricsFile string
}

func newComputeCommand(a *app) *cobra.Command {
	cc := &ComputeCommand{app: a}

	cmd := &cobra.Command{
		Use:   "compute FILE",
		Short: "Compute branch-length statistics",
		Long: `Compute the mean counted branch length of a tree sequence for one or more
conditions. Conditions are evaluated concurrently, one engine each.

Condition expressions:
  always | segregating | singleton | shared
  private:K | fixed:K | exactly:K=N | not:EXPR
  EXPR+EXPR (all must hold)

Examples:
  branchstats compute trees.yaml
  branchstats compute trees.yaml --group pop0 --group pop1 --condition private:0 --condition shared
  branchstats compute trees.json.lz4 --method mutations --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.run(cmd, args[0])
		},
	}

	cmd.Flags().StringArrayVarP(&cc.groups, "group", "g", nil, "sample group name, repeatable (default: all groups in the file)")
	cmd.Flags().StringArrayVarP(&cc.conditions, "condition", "c", nil, "condition expression, repeatable (default from config)")
	cmd.Flags().StringVarP(&cc.method, "method", "m", "", "length or mutations (default from config)")
	cmd.Flags().BoolVar(&cc.naive, "naive", false, "use full traversal of every tree instead of the incremental engine")
	cmd.Flags().StringVarP(&cc.format, "format", "f", "", "output format: table, json, yaml (default from config)")
	cmd.Flags().IntVar(&cc.precision, "precision", unsetPrecision, "decimals shown in tables (default from config)")
	cmd.Flags().StringVar(&cc.metricsFile, "metrics-file", "", "write Prometheus textfile metrics to this path")

	return cmd
}

func (cc *ComputeCommand) run(cmd *cobra.Command, path string) (err error) {
	a := cc.app

	ctx, span := a.tracer().Start(cmd.Context(), "branchstats.cli.compute",
		trace.WithAttributes(attribute.String("path", path)))
	defer span.End()

	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "compute failed")
		}
	}()

	ts, err := a.loadSequence(ctx, path)
	if err != nil {
		return err
	}

	names := cc.groups
	if len(names) == 0 {
		names = a.cfg.Statistic.Groups
	}

	groups, groupNames, err := resolveGroups(ts, names)
	if err != nil {
		return err
	}

	method, err := branchstats.ParseMethod(pick(cc.method, a.cfg.Statistic.Method))
	if err != nil {
		return err
	}

	exprs := cc.conditions
	if len(exprs) == 0 {
		exprs = []string{a.cfg.Statistic.Condition}
	}

	conds, err := parseConditions(exprs, groups)
	if err != nil {
		return err
	}

	metrics, flush, err := a.statMetrics(pick(cc.metricsFile, a.cfg.Observability.MetricsFile))
	if err != nil {
		return err
	}

	var rows []render.Row

	if cc.naive || method == branchstats.MethodMutations {
		rows, err = cc.runNaive(ctx, ts, groups, exprs, conds, method, metrics)
	} else {
		rows, err = cc.runIncremental(ctx, ts, groups, exprs, conds, metrics)
	}

	if err != nil {
		return err
	}

	label := strings.Join(groupNames, ",")
	for i := range rows {
		rows[i].Name = label
	}

	span.SetAttributes(attribute.Int("statistics", len(rows)))

	precision := cc.precision
	if precision == unsetPrecision {
		precision = a.cfg.Output.Precision
	}

	err = render.Results(cmd.OutOrStdout(), pick(cc.format, a.cfg.Output.Format), precision, rows)
	if err != nil {
		return err
	}

	return flush(ctx)
}

func (cc *ComputeCommand) runIncremental(
	ctx context.Context, ts *treeseq.TreeSequence, groups branchstats.LeafGroups,
	exprs []string, conds []branchstats.Condition, metrics *observability.StatMetrics,
) ([]render.Row, error) {
	specs := make([]branchstats.StatSpec, len(exprs))
	for i, expr := range exprs {
		specs[i] = branchstats.StatSpec{Name: expr, Groups: groups, Condition: conds[i]}
	}

	start := time.Now()

	results, err := branchstats.ComputeAll(ctx, ts, specs, branchstats.WithLogger(cc.app.logger()))
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	rows := make([]render.Row, 0, len(exprs))

	for _, expr := range exprs {
		res := results[expr]

		stats := engineRunStats(expr, res)
		stats.Duration = elapsed
		metrics.RecordRun(ctx, stats)

		rows = append(rows, render.Row{
			Condition:      expr,
			Method:         string(branchstats.MethodLength),
			Engine:         engineIncremental,
			Value:          res.Value,
			Trees:          res.Trees,
			Covered:        res.Covered,
			SequenceLength: res.SequenceLength,
			Truncated:      res.Truncated,
		})
	}

	cc.app.logger().Info("computed statistics", "count", len(rows), "engine", engineIncremental, "elapsed", elapsed)

	return rows, nil
}

func (cc *ComputeCommand) runNaive(
	ctx context.Context, ts *treeseq.TreeSequence, groups branchstats.LeafGroups,
	exprs []string, conds []branchstats.Condition, method branchstats.Method, metrics *observability.StatMetrics,
) ([]render.Row, error) {
	rows := make([]render.Row, 0, len(exprs))

	for i, expr := range exprs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		trees := 0
		covered := 0.0
		start := time.Now()

		value, err := branchstats.NodeIter(ts, groups, conds[i], method,
			branchstats.WithLogger(cc.app.logger()),
			branchstats.WithTreeObserver(func(r branchstats.TreeRecord) {
				trees++
				covered += r.Length()
			}))
		if err != nil {
			return nil, fmt.Errorf("statistic %q: %w", expr, err)
		}

		metrics.RecordRun(ctx, observability.RunStats{
			Statistic: expr,
			Engine:    engineNaive,
			Trees:     trees,
			Duration:  time.Since(start),
			Value:     value,
		})

		rows = append(rows, render.Row{
			Condition:      expr,
			Method:         string(method),
			Engine:         engineNaive,
			Value:          value,
			Trees:          trees,
			Covered:        covered,
			SequenceLength: ts.SequenceLength(),
		})
	}

	return rows, nil
}
