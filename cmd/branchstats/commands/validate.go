package commands

import (
	"bytes"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/branchstats/internal/render"
	"github.com/Sumatoshi-tech/branchstats/pkg/treeseq"
)

func newValidateCommand(a *app) *cobra.Command {
	var colorize, nocolor bool

	cmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Validate a tree sequence document",
		Long: `Check a tree sequence document against the document schema, then check
the tables it describes: intervals, node times, overlapping records and
children with more than one parent. Exits with status 2 on failure.

Examples:
  branchstats validate trees.yaml
  branchstats validate --no-color trees.json.lz4`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if nocolor {
				color.NoColor = true //nolint:reassign // intentional override of library global
			} else if colorize {
				color.NoColor = false //nolint:reassign // intentional override of library global
			}

			return a.runValidate(cmd, args[0])
		},
	}

	cmd.Flags().BoolVar(&colorize, "color", false, "force colored output")
	cmd.Flags().BoolVar(&nocolor, "no-color", false, "disable colored output")

	return cmd
}

func (a *app) runValidate(cmd *cobra.Command, path string) error {
	_, span := a.tracer().Start(cmd.Context(), "branchstats.cli.validate",
		trace.WithAttributes(attribute.String("path", path)))
	defer span.End()

	data, err := treeseq.ReadFile(path)
	if err != nil {
		return err
	}

	violations, err := treeseq.ValidateDocument(data)
	if err != nil {
		return err
	}

	var tableErr error

	if len(violations) == 0 {
		_, tableErr = treeseq.Decode(bytes.NewReader(data))
	}

	span.SetAttributes(
		attribute.Int("schema_errors", len(violations)),
		attribute.Bool("tables_valid", tableErr == nil),
	)

	if !render.Validation(cmd.OutOrStdout(), path, violations, tableErr) {
		return fmt.Errorf("%w: %s", ErrValidationFailed, path)
	}

	return nil
}
