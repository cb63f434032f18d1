package render

import (
	"fmt"
	"io"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/branchstats/pkg/alg/stats"
	"github.com/Sumatoshi-tech/branchstats/pkg/treeseq"
)

// TreeCheck pairs the naive and incremental values of one tree.
type TreeCheck struct {
	Index       int
	Left        float64
	Right       float64
	Naive       float64
	Incremental float64
}

// VerifyReport compares the two engines on one statistic.
type VerifyReport struct {
	Statistic   string
	Tolerance   float64
	Naive       float64
	Incremental float64
	Trees       []TreeCheck
}

// agree reports whether a and b agree within tol relative to max(1, |a|).
func agree(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol*math.Max(1, math.Abs(a))
}

// Mismatches returns the trees whose values disagree beyond the tolerance.
func (r VerifyReport) Mismatches() []TreeCheck {
	var out []TreeCheck

	for _, tc := range r.Trees {
		if !agree(tc.Naive, tc.Incremental, r.Tolerance) {
			out = append(out, tc)
		}
	}

	return out
}

// OK reports whether the totals and every tree agree.
func (r VerifyReport) OK() bool {
	return agree(r.Naive, r.Incremental, r.Tolerance) && len(r.Mismatches()) == 0
}

// Verify writes a coloured verdict for report, with a table of disagreeing
// trees when there are any.
func Verify(w io.Writer, report VerifyReport, precision int) error {
	if report.OK() {
		_, err := color.New(color.FgGreen).Fprintf(w, "OK %s: %s over %s trees\n",
			report.Statistic, FormatValue(report.Incremental, precision), humanize.Comma(int64(len(report.Trees))))

		return err
	}

	mismatches := report.Mismatches()

	color.New(color.FgRed).Fprintf(w, "MISMATCH %s: naive %s, incremental %s\n",
		report.Statistic, FormatValue(report.Naive, precision), FormatValue(report.Incremental, precision))
	if len(mismatches) == 0 {
		return nil
	}

	diffs := make([]float64, len(mismatches))
	for i, tc := range mismatches {
		diffs[i] = math.Abs(tc.Incremental - tc.Naive)
	}

	color.New(color.FgYellow).Fprintf(w, "  %s of %s trees differ, largest difference %s\n",
		humanize.Comma(int64(len(mismatches))), humanize.Comma(int64(len(report.Trees))),
		FormatValue(stats.Max(diffs), precision))

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Tree", "Left", "Right", "Naive", "Incremental", "Diff"})

	for _, tc := range mismatches {
		tbl.AppendRow(table.Row{
			tc.Index, tc.Left, tc.Right,
			FormatValue(tc.Naive, precision),
			FormatValue(tc.Incremental, precision),
			FormatValue(tc.Incremental-tc.Naive, precision),
		})
	}

	_, err := fmt.Fprintln(w, tbl.Render())

	return err
}

// Validation writes a coloured report of schema violations and table errors
// for the document named label. It returns true when the document is valid.
func Validation(w io.Writer, label string, violations []treeseq.SchemaError, tableErr error) bool {
	if len(violations) == 0 && tableErr == nil {
		color.New(color.FgGreen).Fprintf(w, "Tree sequence is valid (%s)\n", label)

		return true
	}

	color.New(color.FgRed).Fprintf(w, "Tree sequence validation failed (%s)\n", label)

	for _, v := range violations {
		color.New(color.FgRed).Fprintf(w, "  - %s\n", v)
	}

	if tableErr != nil {
		color.New(color.FgRed).Fprintf(w, "  - %v\n", tableErr)
	}

	return false
}
