package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/involucelate/chef/internal/status"
	pkgsync "github.com/involucelate/chef/internal/sync"
)

// withStatus runs fn with the worker's cached status under its lock
func (w *tableWorker) withStatus(fn func(*status.SyncStatus)) {
	w.statusMu.Lock()
	defer w.statusMu.Unlock()
	fn(w.cachedStatus)
}

// checkSync performs a sync check and either syncs or records why not
func (c *defaultCoordinator) checkSync(ctx context.Context, w *tableWorker, checkType string, manualSyncRequested bool) {
	// Check if sync is needed (read status under lock)
	// ShouldSync reports false with ReasonAlreadyInProgress when the
	// phase is already Syncing
	var shouldSync bool
	var reason string
	w.withStatus(func(syncStatus *status.SyncStatus) {
		shouldSync, reason, _ = c.manager.ShouldSync(ctx, w.cfg, syncStatus, manualSyncRequested)
	})

	// Manual checks are user-initiated, so their outcome is always
	// worth surfacing; periodic no-op checks stay at debug
	logLevel := slog.LevelDebug
	if shouldSync || pkgsync.IsManualSync(reason) {
		logLevel = slog.LevelInfo
	}
	slog.Log(ctx, logLevel, "Sync check",
		"table", w.cfg.Name,
		"check", checkType,
		"shouldSync", shouldSync,
		"reason", reason)

	if shouldSync {
		c.performSync(ctx, w)
	} else {
		c.updateStatusForSkippedSync(ctx, w, reason)
	}
}

// performSync executes a sync operation and tracks it in the table status
func (c *defaultCoordinator) performSync(ctx context.Context, w *tableWorker) {
	runID := uuid.NewString()
	startTime := time.Now()

	// Ensure the final status is persisted, whatever the result
	defer func() {
		w.withStatus(func(syncStatus *status.SyncStatus) {
			if err := c.persistence.SaveStatus(ctx, w.cfg.Name, syncStatus); err != nil {
				slog.ErrorContext(ctx, "Failed to persist final sync status",
					"table", w.cfg.Name, "error", err)
			}
		})
	}()

	// Update status: Syncing (under lock)
	var attemptCount int
	w.withStatus(func(syncStatus *status.SyncStatus) {
		syncStatus.Phase = status.SyncPhaseSyncing
		syncStatus.Message = "Sync in progress"
		now := time.Now()
		syncStatus.LastAttempt = &now
		syncStatus.AttemptCount++
		syncStatus.RunID = runID
		attemptCount = syncStatus.AttemptCount

		// Persist the "Syncing" state immediately so it's visible to
		// status readers
		if err := c.persistence.SaveStatus(ctx, w.cfg.Name, syncStatus); err != nil {
			slog.WarnContext(ctx, "Failed to persist syncing status",
				"table", w.cfg.Name, "error", err)
		}
	})

	slog.InfoContext(ctx, "Starting sync operation",
		"table", w.cfg.Name, "run_id", runID, "attempt", attemptCount)

	// Perform sync (outside lock - this can take a long time)
	result, syncErr := c.manager.PerformSync(ctx, w.cfg)

	syncDuration := time.Since(startTime)

	// Update status based on result (under lock)
	now := time.Now()
	w.withStatus(func(syncStatus *status.SyncStatus) {
		if syncErr != nil {
			syncStatus.Phase = status.SyncPhaseFailed
			syncStatus.Message = syncErr.Message
			slog.ErrorContext(ctx, "Sync failed",
				"table", w.cfg.Name,
				"run_id", runID,
				"stage", syncErr.Stage,
				"error", syncErr.Message)
			return
		}

		syncStatus.Phase = status.SyncPhaseComplete
		syncStatus.Message = "Sync completed successfully"
		syncStatus.LastSyncTime = &now
		syncStatus.LastSyncHash = result.Hash
		syncStatus.LastAppliedFilterHash = pkgsync.FilterHash(w.cfg.Filter)
		syncStatus.EntryCount = result.EntryCount
		syncStatus.AttemptCount = 0

		hashPreview := result.Hash
		if len(hashPreview) > 8 {
			hashPreview = hashPreview[:8]
		}
		slog.InfoContext(ctx, "Sync completed successfully",
			"table", w.cfg.Name,
			"run_id", runID,
			"entries", result.EntryCount,
			"hash", hashPreview)
	})

	// Record metrics outside the status lock
	if syncErr != nil {
		c.syncMetrics.RecordSyncDuration(ctx, w.cfg.Name, syncDuration, false)
		return
	}
	c.syncMetrics.RecordSyncDuration(ctx, w.cfg.Name, syncDuration, true)
	c.dispatchMetrics.RecordTableEntries(ctx, w.cfg.Name, int64(result.EntryCount))
}

// updateStatusForSkippedSync records why a sync check decided not to sync.
// Only the message changes: the phase is preserved so a Failed table keeps
// reporting Failed until a sync actually succeeds.
func (c *defaultCoordinator) updateStatusForSkippedSync(ctx context.Context, w *tableWorker, reason string) {
	w.withStatus(func(syncStatus *status.SyncStatus) {
		if syncStatus.Phase == status.SyncPhaseSyncing {
			// Never overwrite an in-flight marker
			return
		}
		syncStatus.Message = fmt.Sprintf("Sync skipped: %s", reason)
		if err := c.persistence.SaveStatus(ctx, w.cfg.Name, syncStatus); err != nil {
			slog.WarnContext(ctx, "Failed to persist skipped sync status",
				"table", w.cfg.Name, "error", err)
		}
	})
}
