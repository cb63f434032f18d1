package observability_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sumatoshi-tech/branchstats/internal/observability"
)

func TestFilteringProvider_SuppressesStatisticSpans(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	base := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	fp := observability.NewFilteringTracerProvider(base)
	tracer := fp.Tracer("branchstats")

	ctx, command := tracer.Start(context.Background(), "branchstats.cli.compute")

	_, pass := tracer.Start(ctx, "branchstats.compute")
	pass.End()
	command.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "branchstats.cli.compute", spans[0].Name)
}
