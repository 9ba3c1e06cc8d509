package sync

import (
	"context"
	"time"

	"github.com/involucelate/chef/internal/config"
	"github.com/involucelate/chef/internal/sources"
	"github.com/involucelate/chef/internal/status"
)

// defaultDataChangeDetector implements DataChangeDetector
type defaultDataChangeDetector struct {
	sourceHandlerFactory sources.SourceHandlerFactory
}

// IsDataChanged checks if source data has changed by comparing hashes
func (d *defaultDataChangeDetector) IsDataChanged(
	ctx context.Context, tblCfg *config.TableConfig, syncStatus *status.SyncStatus,
) (bool, error) {
	var lastSyncHash string
	if syncStatus != nil {
		lastSyncHash = syncStatus.LastSyncHash
	}

	// If we don't have a last sync hash, consider data changed
	if lastSyncHash == "" {
		return true, nil
	}

	// Get source handler
	sourceHandler, err := d.sourceHandlerFactory.CreateHandler(tblCfg.GetType())
	if err != nil {
		return true, err
	}

	// Get current hash from source
	currentHash, err := sourceHandler.CurrentHash(ctx, tblCfg)
	if err != nil {
		return true, err
	}

	// Compare hashes - data changed if different
	return currentHash != lastSyncHash, nil
}

// defaultAutomaticSyncChecker implements AutomaticSyncChecker
type defaultAutomaticSyncChecker struct{}

// IsIntervalSyncNeeded checks if sync is needed based on time interval
// Returns: (syncNeeded, nextSyncTime, error)
// nextSyncTime is a future time when the next sync should occur, or zero time if no policy configured
func (*defaultAutomaticSyncChecker) IsIntervalSyncNeeded(
	tblCfg *config.TableConfig, syncStatus *status.SyncStatus,
) (bool, time.Time, error) {
	if tblCfg.SyncPolicy == nil || tblCfg.SyncPolicy.Interval == "" {
		return false, time.Time{}, nil
	}

	// Parse the sync interval
	interval, err := time.ParseDuration(tblCfg.SyncPolicy.Interval)
	if err != nil {
		return false, time.Time{}, err
	}

	now := time.Now()

	var lastAttempt *time.Time
	if syncStatus != nil {
		lastAttempt = syncStatus.LastAttempt
	}

	// If we don't have a last attempt time, sync is needed
	if lastAttempt == nil {
		return true, now.Add(interval), nil
	}

	// Calculate when the next sync should happen based on the last attempt
	nextSyncTime := lastAttempt.Add(interval)

	// Check if it's time for the next sync
	if now.After(nextSyncTime) || now.Equal(nextSyncTime) {
		// If sync is needed now, calculate when the one after this should be
		return true, now.Add(interval), nil
	}

	// Sync not needed yet, return the originally calculated next sync time
	return false, nextSyncTime, nil
}
