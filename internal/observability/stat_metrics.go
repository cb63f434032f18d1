package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRunsTotal       = "branchstats.runs.total"
	metricTreesTotal      = "branchstats.trees.total"
	metricEdgesTotal      = "branchstats.edges.total"
	metricVisitsTotal     = "branchstats.ancestor_visits.total"
	metricPredicatesTotal = "branchstats.predicate_calls.total"
	metricRunDuration     = "branchstats.run.duration.seconds"
	metricValue           = "branchstats.value"

	attrStatistic = "statistic"
	attrEngine    = "engine"
	attrDirection = "direction"
	attrTruncated = "truncated"
)

// durationBucketBoundaries are histogram buckets for run durations, in seconds.
var durationBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 60}

// StatMetrics holds OTel instruments for statistic runs.
type StatMetrics struct {
	runs       metric.Int64Counter
	trees      metric.Int64Counter
	edges      metric.Int64Counter
	visits     metric.Int64Counter
	predicates metric.Int64Counter
	duration   metric.Float64Histogram
	value      metric.Float64Gauge
}

// RunStats describes one completed statistic run, decoupled from engine types.
type RunStats struct {
	Statistic string
	// Engine is "incremental" or "naive".
	Engine         string
	Trees          int
	EdgesIn        int
	EdgesOut       int
	AncestorVisits int
	PredicateCalls int
	Duration       time.Duration
	Value          float64
	Truncated      bool
}

// NewStatMetrics creates statistic metric instruments from the given meter.
func NewStatMetrics(mt metric.Meter) (*StatMetrics, error) {
	b := newMetricBuilder(mt)

	sm := &StatMetrics{
		runs:       b.counter(metricRunsTotal, "Total statistic runs", "{run}"),
		trees:      b.counter(metricTreesTotal, "Total trees visited", "{tree}"),
		edges:      b.counter(metricEdgesTotal, "Edge records applied by direction", "{record}"),
		visits:     b.counter(metricVisitsTotal, "Ancestor nodes visited during count propagation", "{node}"),
		predicates: b.counter(metricPredicatesTotal, "Condition evaluations", "{call}"),
		duration:   b.histogram(metricRunDuration, "Statistic run duration in seconds", "s", durationBucketBoundaries...),
		value:      b.gauge(metricValue, "Last computed statistic value", "1"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return sm, nil
}

// RecordRun records the statistics of a completed run.
// Safe to call on a nil receiver (no-op).
func (sm *StatMetrics) RecordRun(ctx context.Context, stats RunStats) {
	if sm == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrStatistic, stats.Statistic),
		attribute.String(attrEngine, stats.Engine),
	)

	sm.runs.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrStatistic, stats.Statistic),
		attribute.String(attrEngine, stats.Engine),
		attribute.Bool(attrTruncated, stats.Truncated),
	))
	sm.trees.Add(ctx, int64(stats.Trees), attrs)
	sm.visits.Add(ctx, int64(stats.AncestorVisits), attrs)
	sm.predicates.Add(ctx, int64(stats.PredicateCalls), attrs)
	sm.duration.Record(ctx, stats.Duration.Seconds(), attrs)
	sm.value.Record(ctx, stats.Value, attrs)

	sm.edges.Add(ctx, int64(stats.EdgesIn), metric.WithAttributes(
		attribute.String(attrStatistic, stats.Statistic),
		attribute.String(attrDirection, "in"),
	))
	sm.edges.Add(ctx, int64(stats.EdgesOut), metric.WithAttributes(
		attribute.String(attrStatistic, stats.Statistic),
		attribute.String(attrDirection, "out"),
	))
}
