package commands

import (
	"context"
	"errors"

	"github.com/Sumatoshi-tech/branchstats/internal/observability"
	"github.com/Sumatoshi-tech/branchstats/pkg/branchstats"
)

// Engine labels for rendered rows and metrics.
const (
	engineIncremental = "incremental"
	engineNaive       = "naive"
	engineTree        = "tree"
)

// statMetrics returns the instruments runs are recorded on and a flush
// function. With a metrics file the instruments live on a private Prometheus
// sink that flush writes out; otherwise they use the global meter.
func (a *app) statMetrics(path string) (*observability.StatMetrics, func(context.Context) error, error) {
	if path == "" {
		sm, err := observability.NewStatMetrics(a.providers.Meter)
		if err != nil {
			return nil, nil, err
		}

		return sm, func(context.Context) error { return nil }, nil
	}

	sink, err := observability.NewPromSink()
	if err != nil {
		return nil, nil, err
	}

	sm, err := observability.NewStatMetrics(sink.Meter())
	if err != nil {
		return nil, nil, errors.Join(err, sink.Shutdown(context.Background()))
	}

	flush := func(ctx context.Context) error {
		writeErr := sink.WriteTextfile(path)
		if writeErr == nil {
			a.logger().Info("wrote metrics", "path", path)
		}

		return errors.Join(writeErr, sink.Shutdown(ctx))
	}

	return sm, flush, nil
}

func engineRunStats(name string, res branchstats.Result) observability.RunStats {
	return observability.RunStats{
		Statistic:      name,
		Engine:         engineIncremental,
		Trees:          res.Trees,
		EdgesIn:        res.Stats.EdgesIn,
		EdgesOut:       res.Stats.EdgesOut,
		AncestorVisits: res.Stats.AncestorVisits,
		PredicateCalls: res.Stats.PredicateCalls,
		Value:          res.Value,
		Truncated:      res.Truncated,
	}
}
