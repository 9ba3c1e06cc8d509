package sync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/involucelate/chef/internal/config"
	"github.com/involucelate/chef/internal/filtering"
	"github.com/involucelate/chef/internal/service"
	"github.com/involucelate/chef/internal/sources"
	"github.com/involucelate/chef/internal/status"
)

// Result contains the result of a successful sync operation
type Result struct {
	Hash       string
	EntryCount int
	Duration   time.Duration
}

// Sync reason constants
const (
	// Table state related reasons
	ReasonAlreadyInProgress = "sync-already-in-progress"
	ReasonTableNotReady     = "table-not-ready"

	// Filter change related reasons
	ReasonFilterChanged = "filter-changed"

	// Data change related reasons
	ReasonSourceDataChanged    = "source-data-changed"
	ReasonErrorCheckingChanges = "error-checking-data-changes"

	// Manual sync related reasons
	ReasonManualWithChanges = "manual-sync-with-data-changes"
	ReasonManualNoChanges   = "manual-sync-no-data-changes"

	// Automatic sync related reasons
	ReasonErrorCheckingSyncNeed = "error-checking-sync-need"

	// Up-to-date reason
	ReasonUpToDate = "up-to-date"
)

// Sync stages attached to structured errors
const (
	StageValidation = "validation"
	StageFetch      = "fetch"
	StageFilter     = "filter"
	StageApply      = "apply"
	StageStorage    = "storage"
)

// Error is a structured sync error carrying the stage that failed
type Error struct {
	Err     error
	Message string
	Stage   string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Manager manages synchronization operations for dispatch tables
//
//go:generate mockgen -destination=mocks/mock_manager.go -package=mocks -source=manager.go Manager
type Manager interface {
	// ShouldSync determines if a sync operation is needed for a specific table
	ShouldSync(
		ctx context.Context, tblCfg *config.TableConfig, syncStatus *status.SyncStatus, manualSyncRequested bool,
	) (bool, string, *time.Time)

	// PerformSync executes the complete sync operation for a specific table
	PerformSync(ctx context.Context, tblCfg *config.TableConfig) (*Result, *Error)

	// Restore loads the last stored snapshot for a table and applies it,
	// returning the number of entries restored. A missing snapshot is not
	// an error.
	Restore(ctx context.Context, tblCfg *config.TableConfig) (int, error)
}

// DataChangeDetector detects changes in source data
type DataChangeDetector interface {
	// IsDataChanged checks if source data has changed by comparing hashes for a specific table
	IsDataChanged(ctx context.Context, tblCfg *config.TableConfig, syncStatus *status.SyncStatus) (bool, error)
}

// AutomaticSyncChecker handles automatic sync timing logic
type AutomaticSyncChecker interface {
	// IsIntervalSyncNeeded checks if sync is needed based on time interval for a specific table
	// Returns (syncNeeded, nextSyncTime, error) where nextSyncTime is always in the future
	IsIntervalSyncNeeded(tblCfg *config.TableConfig, syncStatus *status.SyncStatus) (bool, time.Time, error)
}

// defaultSyncManager is the default implementation of Manager
type defaultSyncManager struct {
	sourceHandlerFactory sources.SourceHandlerFactory
	storageManager       sources.StorageManager
	dispatch             service.DispatchService
	filterService        filtering.FilterService
	dataChangeDetector   DataChangeDetector
	automaticSyncChecker AutomaticSyncChecker
}

// NewDefaultSyncManager creates a new defaultSyncManager that applies
// synced documents to dispatch and snapshots them through storageManager
func NewDefaultSyncManager(
	sourceHandlerFactory sources.SourceHandlerFactory,
	storageManager sources.StorageManager,
	dispatch service.DispatchService,
) Manager {
	return &defaultSyncManager{
		sourceHandlerFactory: sourceHandlerFactory,
		storageManager:       storageManager,
		dispatch:             dispatch,
		filterService:        filtering.NewDefaultFilterService(),
		dataChangeDetector:   &defaultDataChangeDetector{sourceHandlerFactory: sourceHandlerFactory},
		automaticSyncChecker: &defaultAutomaticSyncChecker{},
	}
}

// ShouldSync determines if a sync operation is needed for a specific table
// Returns: (shouldSync bool, reason string, nextSyncTime *time.Time)
// nextSyncTime is always nil - timing is controlled by the configured sync interval
func (s *defaultSyncManager) ShouldSync(
	ctx context.Context,
	tblCfg *config.TableConfig,
	syncStatus *status.SyncStatus,
	manualSyncRequested bool,
) (bool, string, *time.Time) {
	// If the table is currently syncing, don't start another sync
	if syncStatus.Phase == status.SyncPhaseSyncing {
		return false, ReasonAlreadyInProgress, nil
	}

	// Check if sync is needed based on the table's current state
	syncNeededForState := s.isSyncNeededForState(syncStatus)
	// Check if the filter configuration has changed
	filterChanged := s.isFilterChanged(ctx, tblCfg, syncStatus)
	// Check if the interval has elapsed
	intervalElapsed, _, err := s.automaticSyncChecker.IsIntervalSyncNeeded(tblCfg, syncStatus)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to determine if interval has elapsed",
			"table", tblCfg.Name, "error", err)
		return false, ReasonErrorCheckingSyncNeed, nil
	}

	if !(syncNeededForState || manualSyncRequested || filterChanged || intervalElapsed) {
		return false, ReasonUpToDate, nil
	}

	dataChanged, err := s.dataChangeDetector.IsDataChanged(ctx, tblCfg, syncStatus)

	var shouldSync bool
	var reason string
	switch {
	case err != nil:
		// Can't tell whether the source changed; sync to be safe
		slog.ErrorContext(ctx, "Failed to determine if data has changed",
			"table", tblCfg.Name, "error", err)
		shouldSync, reason = true, ReasonErrorCheckingChanges
	case syncNeededForState:
		// A table that never synced, or whose last sync failed, retries
		// even when the source hash is unchanged
		shouldSync, reason = true, ReasonTableNotReady
	case dataChanged && manualSyncRequested:
		shouldSync, reason = true, ReasonManualWithChanges
	case dataChanged:
		shouldSync, reason = true, ReasonSourceDataChanged
	case filterChanged:
		// A filter change re-syncs even when the source data itself is
		// unchanged: the applied table is derived from both
		shouldSync, reason = true, ReasonFilterChanged
	case manualSyncRequested:
		shouldSync, reason = false, ReasonManualNoChanges
	default:
		shouldSync, reason = false, ReasonUpToDate
	}

	slog.DebugContext(ctx, "Sync check",
		"table", tblCfg.Name,
		"syncNeededForState", syncNeededForState,
		"filterChanged", filterChanged,
		"manualSyncRequested", manualSyncRequested,
		"intervalElapsed", intervalElapsed,
		"dataChanged", dataChanged,
		"shouldSync", shouldSync,
		"reason", reason)

	return shouldSync, reason, nil
}

// isSyncNeededForState checks if sync is needed based on the table's current state
func (*defaultSyncManager) isSyncNeededForState(syncStatus *status.SyncStatus) bool {
	if syncStatus != nil {
		// A failed or never-completed sync needs another attempt
		return syncStatus.Phase != status.SyncPhaseComplete
	}

	// No sync status at all means the table has never synced
	return true
}

// isFilterChanged checks if the filter has changed compared to the last applied configuration
func (*defaultSyncManager) isFilterChanged(
	ctx context.Context, tblCfg *config.TableConfig, syncStatus *status.SyncStatus,
) bool {
	lastHash := syncStatus.LastAppliedFilterHash
	if lastHash == "" {
		// First time - no change
		return false
	}

	currentHash := FilterHash(tblCfg.Filter)
	if currentHash != lastHash {
		slog.DebugContext(ctx, "Filter configuration changed",
			"table", tblCfg.Name,
			"currentFilterHash", currentHash,
			"lastAppliedFilterHash", lastHash)
		return true
	}
	return false
}

// FilterHash returns a stable hash of a table's filter configuration.
// The coordinator records it after a successful sync so a filter change
// forces a re-sync even when the source data is unchanged.
func FilterHash(filter *config.FilterConfig) string {
	// Marshaling a *FilterConfig cannot fail: the struct is made of
	// string slices only
	data, _ := json.Marshal(filter)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// PerformSync performs the complete sync operation for a specific table
// Returns sync result on success, or error on failure
func (s *defaultSyncManager) PerformSync(
	ctx context.Context, tblCfg *config.TableConfig,
) (*Result, *Error) {
	started := time.Now()

	// Fetch and process the table document
	fetchResult, syncErr := s.fetchAndProcessTableData(ctx, tblCfg)
	if syncErr != nil {
		return nil, syncErr
	}

	// Apply the processed document to the live service and snapshot it
	if syncErr := s.applyTableData(ctx, tblCfg, fetchResult); syncErr != nil {
		return nil, syncErr
	}

	return &Result{
		Hash:       fetchResult.Hash,
		EntryCount: fetchResult.EntryCount,
		Duration:   time.Since(started),
	}, nil
}

// Restore loads the last stored snapshot for a table and applies it to
// the live service, so a restarted server can answer resolutions before
// the first sync completes.
func (s *defaultSyncManager) Restore(ctx context.Context, tblCfg *config.TableConfig) (int, error) {
	doc, err := s.storageManager.Get(ctx, tblCfg.Name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to load table snapshot: %w", err)
	}

	applied, err := s.dispatch.ReplaceTable(ctx, tblCfg.Name, doc)
	if err != nil {
		return 0, fmt.Errorf("failed to apply table snapshot: %w", err)
	}

	slog.InfoContext(ctx, "Restored table from snapshot",
		"table", tblCfg.Name, "entries", applied)
	return applied, nil
}

// fetchAndProcessTableData handles source handler creation, validation, fetch, and filtering
func (s *defaultSyncManager) fetchAndProcessTableData(
	ctx context.Context,
	tblCfg *config.TableConfig) (*sources.FetchResult, *Error) {
	// Get source handler
	sourceHandler, err := s.sourceHandlerFactory.CreateHandler(tblCfg.GetType())
	if err != nil {
		slog.ErrorContext(ctx, "Failed to create source handler", "table", tblCfg.Name, "error", err)
		return nil, &Error{
			Err:     err,
			Message: fmt.Sprintf("Failed to create source handler: %v", err),
			Stage:   StageValidation,
		}
	}

	// Validate source configuration
	if err := sourceHandler.Validate(tblCfg); err != nil {
		slog.ErrorContext(ctx, "Source validation failed", "table", tblCfg.Name, "error", err)
		return nil, &Error{
			Err:     err,
			Message: fmt.Sprintf("Source validation failed: %v", err),
			Stage:   StageValidation,
		}
	}

	// Execute fetch operation
	fetchResult, err := sourceHandler.FetchTable(ctx, tblCfg)
	if err != nil {
		slog.ErrorContext(ctx, "Fetch operation failed", "table", tblCfg.Name, "error", err)
		return nil, &Error{
			Err:     err,
			Message: fmt.Sprintf("Fetch failed: %v", err),
			Stage:   StageFetch,
		}
	}

	slog.InfoContext(ctx, "Table document fetched successfully from source",
		"table", tblCfg.Name,
		"entryCount", fetchResult.EntryCount,
		"format", fetchResult.Format,
		"hash", fetchResult.Hash)

	// Apply filtering if configured
	if syncErr := s.applyFilteringIfConfigured(ctx, tblCfg, fetchResult); syncErr != nil {
		return nil, syncErr
	}

	return fetchResult, nil
}

// applyFilteringIfConfigured applies filtering to the fetch result if the table has filter configuration
func (s *defaultSyncManager) applyFilteringIfConfigured(
	ctx context.Context,
	tblCfg *config.TableConfig,
	fetchResult *sources.FetchResult) *Error {
	if tblCfg.Filter == nil {
		slog.DebugContext(ctx, "No filtering configured, using original table document", "table", tblCfg.Name)
		return nil
	}

	filtered, err := s.filterService.ApplyFilters(ctx, fetchResult.Document, tblCfg.Filter)
	if err != nil {
		slog.ErrorContext(ctx, "Table filtering failed", "table", tblCfg.Name, "error", err)
		return &Error{
			Err:     err,
			Message: fmt.Sprintf("Filtering failed: %v", err),
			Stage:   StageFilter,
		}
	}

	// Update fetch result with filtered data
	originalEntryCount := fetchResult.EntryCount
	fetchResult.Document = filtered
	fetchResult.EntryCount = len(filtered.Entries)

	slog.InfoContext(ctx, "Table filtering completed",
		"table", tblCfg.Name,
		"originalEntryCount", originalEntryCount,
		"filteredEntryCount", fetchResult.EntryCount)

	return nil
}

// applyTableData swaps the live dispatch table and snapshots the document
func (s *defaultSyncManager) applyTableData(
	ctx context.Context,
	tblCfg *config.TableConfig,
	fetchResult *sources.FetchResult) *Error {
	applied, err := s.dispatch.ReplaceTable(ctx, tblCfg.Name, fetchResult.Document)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to apply table document", "table", tblCfg.Name, "error", err)
		return &Error{
			Err:     err,
			Message: fmt.Sprintf("Apply failed: %v", err),
			Stage:   StageApply,
		}
	}

	// Snapshot after a successful apply so a restart warm-starts from
	// the same data the service is now answering with. A failed
	// snapshot marks the sync failed and triggers a retry.
	if err := s.storageManager.Store(ctx, tblCfg.Name, fetchResult.Document); err != nil {
		slog.ErrorContext(ctx, "Failed to store table snapshot", "table", tblCfg.Name, "error", err)
		return &Error{
			Err:     err,
			Message: fmt.Sprintf("Storage failed: %v", err),
			Stage:   StageStorage,
		}
	}

	slog.InfoContext(ctx, "Table document applied",
		"table", tblCfg.Name, "entries", applied)

	return nil
}
