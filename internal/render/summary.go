package render

import (
	"github.com/Sumatoshi-tech/branchstats/pkg/alg/stats"
	"github.com/Sumatoshi-tech/branchstats/pkg/branchstats"
)

// TraceSummary describes a per-tree series.
type TraceSummary struct {
	Trees int
	Min   float64
	Max   float64
	// Mean is weighted by tree span, so over a complete stream it equals the
	// statistic value.
	Mean float64
	// StdDev is the unweighted population deviation across trees.
	StdDev float64
}

// Summarize reduces a per-tree series to its extremes and moments.
func Summarize(records []branchstats.TreeRecord) TraceSummary {
	if len(records) == 0 {
		return TraceSummary{}
	}

	values := make([]float64, len(records))
	spans := make([]float64, len(records))

	for i, r := range records {
		values[i] = r.Value
		spans[i] = r.Length()
	}

	_, stddev := stats.MeanStdDev(values)

	return TraceSummary{
		Trees:  len(records),
		Min:    stats.Min(values),
		Max:    stats.Max(values),
		Mean:   stats.WeightedMean(values, spans),
		StdDev: stddev,
	}
}
