package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/involucelate/chef/internal/config"
	"github.com/involucelate/chef/internal/status"
	pkgsync "github.com/involucelate/chef/internal/sync"
	"github.com/involucelate/chef/internal/telemetry"
)

// Check trigger labels used in sync logs
const (
	checkStartup  = "startup"
	checkInterval = "interval"
	checkManual   = "manual"
	checkWatch    = "watch"
)

// Coordinator manages background synchronization for all configured dispatch tables
type Coordinator interface {
	// Start begins the sync loop for every configured table
	// Blocks until the context is cancelled
	Start(ctx context.Context) error

	// TriggerSync requests an immediate sync check for the named table
	TriggerSync(tableName string) error
}

// tableWorker owns the sync loop state for a single table
type tableWorker struct {
	cfg *config.TableConfig

	// statusMu guards cachedStatus; PerformSync runs outside the lock
	statusMu     sync.Mutex
	cachedStatus *status.SyncStatus

	// trigger carries manual sync requests, buffered so a pending request
	// coalesces with later ones
	trigger chan struct{}

	// watchPokes carries file watcher notifications; nil for tables
	// without a watch policy, which blocks that select arm forever
	watchPokes chan struct{}
}

// defaultCoordinator is the default implementation of Coordinator
type defaultCoordinator struct {
	manager     pkgsync.Manager
	persistence status.StatusPersistence
	config      *config.Config

	workers map[string]*tableWorker

	// Metrics
	syncMetrics     *telemetry.SyncMetrics
	dispatchMetrics *telemetry.DispatchMetrics
}

// Option is a function that configures the coordinator
type Option func(*defaultCoordinator)

// WithSyncMetrics sets the sync metrics recorded around sync operations
func WithSyncMetrics(metrics *telemetry.SyncMetrics) Option {
	return func(c *defaultCoordinator) {
		c.syncMetrics = metrics
	}
}

// WithDispatchMetrics sets the dispatch metrics used to report table sizes
func WithDispatchMetrics(metrics *telemetry.DispatchMetrics) Option {
	return func(c *defaultCoordinator) {
		c.dispatchMetrics = metrics
	}
}

// New creates a coordinator with one worker per configured table
func New(
	manager pkgsync.Manager,
	persistence status.StatusPersistence,
	cfg *config.Config,
	opts ...Option,
) Coordinator {
	c := &defaultCoordinator{
		manager:     manager,
		persistence: persistence,
		config:      cfg,
		workers:     make(map[string]*tableWorker, len(cfg.Tables)),
	}

	for i := range cfg.Tables {
		tblCfg := &cfg.Tables[i]
		w := &tableWorker{
			cfg:          tblCfg,
			cachedStatus: &status.SyncStatus{},
			trigger:      make(chan struct{}, 1),
		}
		if tblCfg.SyncPolicy != nil && tblCfg.SyncPolicy.Watch && tblCfg.File != nil {
			w.watchPokes = make(chan struct{}, 1)
		}
		c.workers[tblCfg.Name] = w
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Start begins background sync coordination for all tables
func (c *defaultCoordinator) Start(ctx context.Context) error {
	slog.InfoContext(ctx, "Starting sync coordinator", "table_count", len(c.workers))

	if err := c.initializeStatus(ctx); err != nil {
		return fmt.Errorf("failed to initialize sync status: %w", err)
	}

	c.restoreSnapshots(ctx)

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range c.workers {
		g.Go(func() error {
			return c.runTable(gctx, w)
		})
		if w.watchPokes != nil {
			g.Go(func() error {
				return c.watchTable(gctx, w)
			})
		}
	}

	err := g.Wait()
	slog.InfoContext(ctx, "Sync coordinator stopped")
	return err
}

// TriggerSync requests an immediate sync check for the named table.
// The request is coalesced with any trigger already pending.
func (c *defaultCoordinator) TriggerSync(tableName string) error {
	w, ok := c.workers[tableName]
	if !ok {
		return fmt.Errorf("unknown table: %s", tableName)
	}

	select {
	case w.trigger <- struct{}{}:
	default:
	}
	return nil
}

// initializeStatus loads persisted status for every table and clears
// stale Syncing phases left behind by an interrupted run, which would
// otherwise block every future sync check
func (c *defaultCoordinator) initializeStatus(ctx context.Context) error {
	for name, w := range c.workers {
		loaded, err := c.persistence.LoadStatus(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to load sync status for table %q: %w", name, err)
		}

		if loaded.Phase == status.SyncPhaseSyncing {
			slog.WarnContext(ctx, "Clearing stale syncing status from interrupted run",
				"table", name, "run_id", loaded.RunID)
			loaded.Phase = status.SyncPhaseFailed
			loaded.Message = "Sync interrupted by restart"
			if err := c.persistence.SaveStatus(ctx, name, loaded); err != nil {
				slog.ErrorContext(ctx, "Failed to persist cleared status",
					"table", name, "error", err)
			}
		}

		if w.cfg.SyncPolicy != nil {
			loaded.SyncSchedule = w.cfg.SyncPolicy.Interval
		}

		w.cachedStatus = loaded
	}
	return nil
}

// restoreSnapshots warm-starts each table from its last stored snapshot
// so the service can answer resolutions before the first sync completes
func (c *defaultCoordinator) restoreSnapshots(ctx context.Context) {
	for _, w := range c.workers {
		restored, err := c.manager.Restore(ctx, w.cfg)
		if err != nil {
			slog.WarnContext(ctx, "Failed to restore table snapshot",
				"table", w.cfg.Name, "error", err)
			continue
		}
		if restored > 0 {
			c.dispatchMetrics.RecordTableEntries(ctx, w.cfg.Name, int64(restored))
		}
	}
}

// runTable is the sync loop for a single table. The first check runs
// immediately so a fresh start syncs without waiting a full interval.
func (c *defaultCoordinator) runTable(ctx context.Context, w *tableWorker) error {
	c.checkSync(ctx, w, checkStartup, false)

	var tickerC <-chan time.Time
	if interval := getSyncInterval(w.cfg.SyncPolicy); interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tickerC = ticker.C
		slog.InfoContext(ctx, "Scheduled periodic sync",
			"table", w.cfg.Name, "interval", interval)
	}

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping table sync loop", "table", w.cfg.Name)
			return nil
		case <-tickerC:
			c.checkSync(ctx, w, checkInterval, false)
		case <-w.trigger:
			c.checkSync(ctx, w, checkManual, true)
		case <-w.watchPokes:
			c.checkSync(ctx, w, checkWatch, false)
		}
	}
}
