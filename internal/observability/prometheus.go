package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// meterName is the instrumentation scope of branchstats meters.
const meterName = "branchstats"

// PromSink is an OTel MeterProvider backed by its own Prometheus registry.
// Instruments created from Meter are served by Handler and written by
// WriteTextfile.
type PromSink struct {
	registry *prometheus.Registry
	provider *sdkmetric.MeterProvider
}

// NewPromSink creates a sink with an independent registry, so several sinks
// never conflict on collector registration.
func NewPromSink() (*PromSink, error) {
	registry := prometheus.NewRegistry()

	exporter, err := promexporter.New(
		promexporter.WithRegisterer(registry),
	)
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	return &PromSink{
		registry: registry,
		provider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)),
	}, nil
}

// Meter returns the sink's branchstats meter.
func (s *PromSink) Meter() metric.Meter {
	return s.provider.Meter(meterName)
}

// Handler serves the /metrics scrape endpoint.
func (s *PromSink) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the current metrics in the node-exporter textfile
// format. The file is replaced atomically.
func (s *PromSink) WriteTextfile(path string) error {
	err := prometheus.WriteToTextfile(path, s.registry)
	if err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}

	return nil
}

// Shutdown releases the sink's meter provider.
func (s *PromSink) Shutdown(ctx context.Context) error {
	err := s.provider.Shutdown(ctx)
	if err != nil && !errors.Is(err, sdkmetric.ErrReaderShutdown) {
		return fmt.Errorf("shutdown prometheus sink: %w", err)
	}

	return nil
}
