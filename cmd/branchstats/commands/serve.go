package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/branchstats/internal/observability"
	"github.com/Sumatoshi-tech/branchstats/pkg/alg/lru"
	"github.com/Sumatoshi-tech/branchstats/pkg/branchstats"
	"github.com/Sumatoshi-tech/branchstats/pkg/treeseq"
)

// Server timeouts.
const (
	serverReadTimeout     = 30 * time.Second
	serverWriteTimeout    = 60 * time.Second
	serverIdleTimeout     = 120 * time.Second
	serverShutdownTimeout = 5 * time.Second
)

// defaultCacheSize is the number of query results kept by serve.
const defaultCacheSize = 256

// ComputeResponse is the body returned by /api/compute.
type ComputeResponse struct {
	Groups         []string `json:"groups,omitempty"`
	Condition      string   `json:"condition,omitempty"`
	Value          float64  `json:"value"`
	Trees          int      `json:"trees,omitempty"`
	Covered        float64  `json:"covered,omitempty"`
	SequenceLength float64  `json:"sequence_length,omitempty"`
	Truncated      bool     `json:"truncated,omitempty"`
	Error          string   `json:"error,omitempty"`
}

func newServeCommand(a *app) *cobra.Command {
	var (
		addr      string
		cacheSize int
	)

	cmd := &cobra.Command{
		Use:   "serve FILE",
		Short: "Serve statistics and Prometheus metrics over HTTP",
		Long: `Load a tree sequence once and answer statistic queries over HTTP.

Endpoints:
  GET /api/compute?condition=EXPR&group=NAME...  one statistic as JSON
  GET /metrics                                   Prometheus metrics of the queries served
  GET /healthz                                   liveness`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(cmd.Context(), args[0], addr, cacheSize)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":9464", "listen address")
	cmd.Flags().IntVar(&cacheSize, "cache-size", defaultCacheSize, "number of query results to cache")

	return cmd
}

func (a *app) runServe(ctx context.Context, path, addr string, cacheSize int) error {
	if cacheSize <= 0 {
		return fmt.Errorf("cache size %d: must be positive", cacheSize)
	}

	ts, err := a.loadSequence(ctx, path)
	if err != nil {
		return err
	}

	sink, err := observability.NewPromSink()
	if err != nil {
		return err
	}

	defer func() {
		shutdownErr := sink.Shutdown(context.WithoutCancel(ctx))
		if shutdownErr != nil {
			a.logger().Warn("metrics sink shutdown failed", "error", shutdownErr)
		}
	}()

	metrics, err := observability.NewStatMetrics(sink.Meter())
	if err != nil {
		return err
	}

	srv := &statServer{
		ts:        ts,
		logger:    a.logger(),
		tracer:    a.tracer(),
		metrics:   metrics,
		cache:     newResultCache(cacheSize),
		condition: a.cfg.Statistic.Condition,
		groups:    a.cfg.Statistic.Groups,
	}

	server := &http.Server{
		Addr:         addr,
		Handler:      srv.routes(sink.Handler()),
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- server.ListenAndServe()
	}()

	a.logger().Info("serving statistics", "addr", addr, "path", path)

	select {
	case err = <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), serverShutdownTimeout)
	defer cancel()

	a.logger().Info("shutting down server")

	return server.Shutdown(shutdownCtx)
}

// statServer answers statistic queries on one loaded tree sequence.
type statServer struct {
	ts        *treeseq.TreeSequence
	logger    *slog.Logger
	tracer    trace.Tracer
	metrics   *observability.StatMetrics
	cache     *lru.Cache[string, ComputeResponse]
	condition string
	groups    []string
}

func newResultCache(size int) *lru.Cache[string, ComputeResponse] {
	return lru.New(size, lru.WithCloneFunc[string](func(r ComputeResponse) ComputeResponse {
		r.Groups = slices.Clone(r.Groups)

		return r
	}))
}

// cacheKey identifies a query by its condition and ordered group names.
func cacheKey(expr string, names []string) string {
	return expr + "\x00" + strings.Join(names, "\x00")
}

func (s *statServer) routes(metricsHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/compute", s.handleCompute)
	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return mux
}

func (s *statServer) handleCompute(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	expr := query.Get("condition")
	if expr == "" {
		expr = s.condition
	}

	names := query["group"]
	if len(names) == 0 {
		names = s.groups
	}

	ctx, span := s.tracer.Start(r.Context(), "branchstats.http.compute",
		trace.WithAttributes(attribute.String("condition", expr)))
	defer span.End()

	resp, status := s.compute(ctx, expr, names)
	if resp.Error != "" {
		span.SetStatus(codes.Error, resp.Error)
		s.logger.WarnContext(ctx, "compute request failed", "condition", expr, "error", resp.Error)
	}

	writeJSON(ctx, w, status, resp)
}

func (s *statServer) compute(ctx context.Context, expr string, names []string) (ComputeResponse, int) {
	key := cacheKey(expr, names)

	if cached, ok := s.cache.Get(key); ok {
		trace.SpanFromContext(ctx).SetAttributes(attribute.Bool("cache_hit", true))

		return cached, http.StatusOK
	}

	groups, resolved, err := resolveGroups(s.ts, names)
	if err != nil {
		return ComputeResponse{Condition: expr, Error: err.Error()}, http.StatusBadRequest
	}

	conds, err := parseConditions([]string{expr}, groups)
	if err != nil {
		return ComputeResponse{Condition: expr, Error: err.Error()}, http.StatusBadRequest
	}

	start := time.Now()

	res, err := branchstats.Branch(ctx, s.ts, groups, conds[0], branchstats.WithLogger(s.logger))
	if err != nil {
		return ComputeResponse{Condition: expr, Error: err.Error()}, http.StatusInternalServerError
	}

	stats := engineRunStats(expr, res)
	stats.Duration = time.Since(start)
	s.metrics.RecordRun(ctx, stats)

	resp := ComputeResponse{
		Groups:         resolved,
		Condition:      expr,
		Value:          res.Value,
		Trees:          res.Trees,
		Covered:        res.Covered,
		SequenceLength: res.SequenceLength,
		Truncated:      res.Truncated,
	}

	s.cache.Put(key, resp)

	return resp, http.StatusOK
}

// writeJSON encodes value as the JSON response body.
func writeJSON(ctx context.Context, w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(value)
	if err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}
