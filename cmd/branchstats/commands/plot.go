package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/branchstats/internal/render"
	"github.com/Sumatoshi-tech/branchstats/pkg/branchstats"
)

const plotFilePerm = 0o644

// PlotCommand holds the flags of the plot command.
type PlotCommand struct {
	app *app

	groups     []string
	conditions []string
	output     string
}

func newPlotCommand(a *app) *cobra.Command {
	pc := &PlotCommand{app: a}

	cmd := &cobra.Command{
		Use:   "plot FILE",
		Short: "Plot the counted length of every tree along the sequence",
		Long: `Write an HTML line chart of the counted branch length of each tree,
one line per condition, with the left end of each tree on the x axis.

Example:
  branchstats plot trees.yaml -c singleton -c shared -o trace.html`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return pc.run(cmd, args[0])
		},
	}

	cmd.Flags().StringArrayVarP(&pc.groups, "group", "g", nil, "sample group name, repeatable (default: all groups in the file)")
	cmd.Flags().StringArrayVarP(&pc.conditions, "condition", "c", nil, "condition expression, repeatable (default from config)")
	cmd.Flags().StringVarP(&pc.output, "output", "o", "branchstats.html", "output HTML file")

	return cmd
}

func (pc *PlotCommand) run(cmd *cobra.Command, path string) (err error) {
	a := pc.app

	ctx, span := a.tracer().Start(cmd.Context(), "branchstats.cli.plot",
		trace.WithAttributes(attribute.String("path", path), attribute.String("output", pc.output)))
	defer span.End()

	ts, err := a.loadSequence(ctx, path)
	if err != nil {
		return err
	}

	names := pc.groups
	if len(names) == 0 {
		names = a.cfg.Statistic.Groups
	}

	groups, _, err := resolveGroups(ts, names)
	if err != nil {
		return err
	}

	exprs := pc.conditions
	if len(exprs) == 0 {
		exprs = []string{a.cfg.Statistic.Condition}
	}

	conds, err := parseConditions(exprs, groups)
	if err != nil {
		return err
	}

	series := make([]render.Series, len(exprs))

	for i, expr := range exprs {
		var records []branchstats.TreeRecord

		_, err = branchstats.Branch(ctx, ts, groups, conds[i],
			branchstats.WithLogger(a.logger()),
			branchstats.WithTreeObserver(func(r branchstats.TreeRecord) { records = append(records, r) }))
		if err != nil {
			return fmt.Errorf("statistic %q: %w", expr, err)
		}

		series[i] = render.Series{Name: expr, Records: records}

		sum := render.Summarize(records)
		a.logger().Debug("trace", "condition", expr, "trees", sum.Trees,
			"min", sum.Min, "max", sum.Max, "mean", sum.Mean, "stddev", sum.StdDev)
	}

	f, err := os.OpenFile(pc.output, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, plotFilePerm)
	if err != nil {
		return fmt.Errorf("create plot: %w", err)
	}

	defer func() {
		err = errors.Join(err, f.Close())
	}()

	err = render.TracePlot(f, filepath.Base(path), series...)
	if err != nil {
		return fmt.Errorf("render plot: %w", err)
	}

	a.logger().Info("wrote plot", "path", pc.output, "series", len(series))

	return nil
}
