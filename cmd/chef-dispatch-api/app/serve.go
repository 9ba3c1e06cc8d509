package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/involucelate/chef/internal/api"
	"github.com/involucelate/chef/internal/config"
	"github.com/involucelate/chef/internal/service/inmemory"
	"github.com/involucelate/chef/internal/sources"
	"github.com/involucelate/chef/internal/status"
	pkgsync "github.com/involucelate/chef/internal/sync"
	"github.com/involucelate/chef/internal/sync/coordinator"
	"github.com/involucelate/chef/internal/telemetry"
	"github.com/involucelate/chef/internal/versions"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dispatch API server",
	Long: `Start the dispatch API server.

The server requires a configuration file (--config) that specifies the
dispatch tables to load and their sources (git, http, or file), sync
policies, filtering rules, and operational settings.

See the examples/ directory for sample configurations.`,
	RunE: runServe,
}

const (
	defaultGracefulTimeout = 30 * time.Second // enough for in-flight requests to drain
	serverRequestTimeout   = 10 * time.Second // lookups are in-memory and should respond fast
	serverReadTimeout      = 10 * time.Second
	serverWriteTimeout     = 15 * time.Second // must exceed serverRequestTimeout so the middleware answers first
	serverIdleTimeout      = 60 * time.Second
)

func init() {
	bindServeFlags(serveCmd.Flags())

	if err := serveCmd.MarkFlagRequired("config"); err != nil {
		slog.Error("Failed to mark config flag as required", "error", err)
	}
}

// bindServeFlags declares the serve flags and binds them into viper so
// CHEF_DISPATCH_* environment variables can override them.
func bindServeFlags(flags *pflag.FlagSet) {
	flags.String("address", ":8080", "Address to listen on")
	flags.String("config", "", "Path to configuration file (YAML format, required)")
	flags.String("data-dir", "./data", "Directory for table snapshots")

	for _, name := range []string{"address", "config", "data-dir"} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			slog.Error("Failed to bind flag", "flag", name, "error", err)
		}
	}
}

// listenAddress picks the listen address: an explicit --address flag
// wins, then the config file, then the flag default.
func listenAddress(cmd *cobra.Command, cfg *config.Config) string {
	address := viper.GetString("address")
	if cfg.Server != nil && cfg.Server.Address != "" && !cmd.Flags().Changed("address") {
		address = cfg.Server.Address
	}
	return address
}

// statusBasePath picks the sync status directory: the config file's
// status path, or the XDG data home default.
func statusBasePath(cfg *config.Config) string {
	if cfg.Status != nil && cfg.Status.Path != "" {
		return cfg.Status.Path
	}
	return status.DefaultBasePath()
}

// telemetryComponents bundles the providers and handlers built for the
// configured telemetry mode. Nil fields mean the mode does not carry
// them; the metric instruments and API options are nil-tolerant.
type telemetryComponents struct {
	dispatchMetrics *telemetry.DispatchMetrics
	syncMetrics     *telemetry.SyncMetrics
	middlewares     []func(http.Handler) http.Handler
	metricsHandler  http.Handler
	shutdown        func(context.Context) error
}

// instrument builds the shared instrument sets and the HTTP metrics
// middleware on top of the given meter provider.
func (tc *telemetryComponents) instrument(provider metric.MeterProvider) error {
	dispatchMetrics, err := telemetry.NewDispatchMetrics(provider)
	if err != nil {
		return fmt.Errorf("failed to create dispatch metrics: %w", err)
	}
	syncMetrics, err := telemetry.NewSyncMetrics(provider)
	if err != nil {
		return fmt.Errorf("failed to create sync metrics: %w", err)
	}
	httpMetrics, err := telemetry.NewHTTPMetrics(provider)
	if err != nil {
		return fmt.Errorf("failed to create HTTP metrics: %w", err)
	}

	tc.dispatchMetrics = dispatchMetrics
	tc.syncMetrics = syncMetrics
	tc.middlewares = append(tc.middlewares, httpMetrics.Middleware)
	return nil
}

// setupTelemetry builds the telemetry stack for the configured mode:
// "off" (or absent) wires nothing, "prometheus" exposes a pull-based
// /metrics endpoint, "otlp" pushes metrics and traces to a collector.
func setupTelemetry(ctx context.Context, cfg *config.TelemetryConfig) (*telemetryComponents, error) {
	comps := &telemetryComponents{
		shutdown: func(context.Context) error { return nil },
	}
	if cfg == nil || cfg.Mode == "" || cfg.Mode == "off" {
		return comps, nil
	}

	version := versions.GetVersionInfo().Version

	switch cfg.Mode {
	case "prometheus":
		provider, handler, err := telemetry.NewPrometheusMeterProvider(ctx,
			telemetry.WithMeterServiceName(telemetry.DefaultServiceName),
			telemetry.WithMeterServiceVersion(version),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus meter provider: %w", err)
		}
		comps.metricsHandler = handler
		if err := comps.instrument(provider); err != nil {
			return nil, err
		}
		return comps, nil

	case "otlp":
		tracing := &telemetry.TracingConfig{Enabled: true}
		if cfg.SamplingRate > 0 {
			tracing.Sampling = &cfg.SamplingRate
		}
		tel, err := telemetry.New(ctx, telemetry.WithTelemetryConfig(&telemetry.Config{
			Enabled:        true,
			ServiceVersion: version,
			Endpoint:       cfg.Endpoint,
			Insecure:       cfg.Insecure,
			Tracing:        tracing,
			Metrics:        &telemetry.MetricsConfig{Enabled: true},
		}))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		comps.shutdown = tel.Shutdown
		comps.middlewares = append(comps.middlewares,
			telemetry.TracingMiddleware(tel.TracerProvider()))
		if err := comps.instrument(tel.MeterProvider()); err != nil {
			return nil, err
		}
		return comps, nil

	default:
		return nil, fmt.Errorf("unsupported telemetry mode %q", cfg.Mode)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	configPath := viper.GetString("config")
	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	address := listenAddress(cmd, cfg)

	slog.Info("Starting dispatch API server",
		"address", address,
		"config", configPath,
		"instance", cfg.GetInstanceName(),
		"tables", len(cfg.Tables))

	comps, err := setupTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
		defer cancel()
		if err := comps.shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shut down telemetry", "error", err)
		}
	}()

	// The dispatch service starts empty; readiness holds until the sync
	// coordinator has loaded every configured table once.
	svcOpts := make([]inmemory.Option, 0, len(cfg.Tables))
	for i := range cfg.Tables {
		svcOpts = append(svcOpts, inmemory.WithExpectedTable(cfg.Tables[i].Name, cfg.Tables[i].GetType()))
	}
	svc := inmemory.New(svcOpts...)

	dataDir := viper.GetString("data-dir")
	storageManager := sources.NewFileStorageManager(filepath.Join(dataDir, "tables"))
	statusPersistence := status.NewFileStatusPersistence(statusBasePath(cfg))

	syncManager := pkgsync.NewDefaultSyncManager(
		sources.NewSourceHandlerFactory(),
		storageManager,
		svc,
	)
	syncCoordinator := coordinator.New(syncManager, statusPersistence, cfg,
		coordinator.WithSyncMetrics(comps.syncMetrics),
		coordinator.WithDispatchMetrics(comps.dispatchMetrics),
	)

	middlewares := append([]func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Timeout(serverRequestTimeout),
		api.LoggingMiddleware,
	}, comps.middlewares...)

	serverOpts := []api.ServerOption{
		api.WithMiddlewares(middlewares...),
		api.WithStatusReader(statusPersistence),
		api.WithSyncTrigger(syncCoordinator.TriggerSync),
		api.WithDispatchMetrics(comps.dispatchMetrics),
	}
	if comps.metricsHandler != nil {
		serverOpts = append(serverOpts, api.WithMetricsHandler(comps.metricsHandler))
	}

	server := &http.Server{
		Addr:         address,
		Handler:      api.NewServer(svc, serverOpts...),
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := syncCoordinator.Start(gctx); err != nil {
			return fmt.Errorf("sync coordinator failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		slog.Info("Server listening", "address", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	slog.Info("Server shutdown complete")
	return nil
}
