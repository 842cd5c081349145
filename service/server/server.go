package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spoutfi/rwa-relayer/service/metrics"
)

// Server is the operational HTTP surface of the relayer: health, metrics,
// and read-only settlement inspection. It exposes no write endpoints; all
// settlement work is driven by the watcher and the workflow layer.
type Server struct {
	addr    string
	store   SettlementReader
	metrics *metrics.Metrics
	logger  *slog.Logger
	server  *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The metrics is optional - if nil, the metrics endpoint won't be available.
func New(addr string, store SettlementReader, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:    addr,
		store:   store,
		metrics: m,
		logger:  logger,
	}
}

// Start starts the HTTP server. Blocks until Shutdown is called.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	// Settlement inspection routes
	mux.Handle("GET /api/v1/settlements", s.withMetrics("/api/v1/settlements",
		handleListSettlements(s.store, s.logger)))
	mux.Handle("GET /api/v1/settlements/{signature}/{log_index}", s.withMetrics("/api/v1/settlements/{signature}/{log_index}",
		handleGetSettlement(s.store, s.logger)))

	// Health check endpoint
	mux.Handle("GET /healthz", s.withMetrics("/healthz", handleHealthz(s.store)))

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	handler := corsMiddleware(mux)

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// withMetrics wraps a handler with HTTP request metrics when metrics are
// configured.
func (s *Server) withMetrics(name string, h http.Handler) http.Handler {
	if s.metrics == nil {
		return h
	}
	return metrics.HTTPMetricsMiddleware(s.metrics, name)(h)
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
