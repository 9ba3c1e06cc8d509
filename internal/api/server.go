// Package api provides the REST API server for dispatch table access.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	v1 "github.com/involucelate/chef/internal/api/v1"
	"github.com/involucelate/chef/internal/service"
	"github.com/involucelate/chef/internal/status"
	"github.com/involucelate/chef/internal/telemetry"
)

// ServerOption configures the dispatch API server
type ServerOption func(*serverConfig)

// serverConfig holds the server configuration
type serverConfig struct {
	middlewares    []func(http.Handler) http.Handler
	metricsHandler http.Handler
	routeOptions   []v1.Option
}

// WithMiddlewares adds middleware to the server
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithMetricsHandler mounts h at /metrics, typically a Prometheus
// promhttp handler
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.metricsHandler = h
	}
}

// WithStatusReader exposes persisted sync status through the API
func WithStatusReader(sp status.StatusPersistence) ServerOption {
	return func(cfg *serverConfig) {
		cfg.routeOptions = append(cfg.routeOptions, v1.WithStatusReader(sp))
	}
}

// WithSyncTrigger wires manual sync requests to the sync coordinator
func WithSyncTrigger(trigger func(tableName string) error) ServerOption {
	return func(cfg *serverConfig) {
		cfg.routeOptions = append(cfg.routeOptions, v1.WithSyncTrigger(trigger))
	}
}

// WithDispatchMetrics records resolution metrics for API lookups
func WithDispatchMetrics(m *telemetry.DispatchMetrics) ServerOption {
	return func(cfg *serverConfig) {
		cfg.routeOptions = append(cfg.routeOptions, v1.WithMetrics(m))
	}
}

// NewServer creates and configures the HTTP router with the given service and options
func NewServer(svc service.DispatchService, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{
		middlewares: []func(http.Handler) http.Handler{},
	}

	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()

	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	// Health check routes live at the root
	r.Mount("/", v1.HealthRouter(svc))

	r.Mount("/api/v1", v1.Router(svc, cfg.routeOptions...))

	if cfg.metricsHandler != nil {
		r.Handle("/metrics", cfg.metricsHandler)
	}

	return r
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.DebugContext(r.Context(), "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
