package commands

import (
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/branchstats/pkg/treeseq"
)

func newConvertCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "convert IN OUT",
		Short: "Convert a tree sequence document",
		Long: `Read a document and write it back in the format implied by the output
name: .json for JSON, anything else for YAML. A trailing .lz4 on either name
selects an lz4 frame.

Examples:
  branchstats convert trees.yaml trees.json
  branchstats convert trees.json trees.yaml.lz4`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, out := args[0], args[1]

			ctx, span := a.tracer().Start(cmd.Context(), "branchstats.cli.convert",
				trace.WithAttributes(attribute.String("in", in), attribute.String("out", out)))
			defer span.End()

			ts, err := a.loadSequence(ctx, in)
			if err != nil {
				return err
			}

			err = treeseq.Save(out, ts)
			if err != nil {
				return err
			}

			a.logger().Info("converted tree sequence", "in", in, "out", out,
				"format", treeseq.FormatForPath(out), "compressed", treeseq.IsCompressed(out),
				"edges", humanize.Comma(int64(ts.NumEdges())))

			return nil
		},
	}
}
