// Package status provides sync status tracking and persistence for
// dispatch tables.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/gofrs/flock"
)

//go:generate mockgen -destination=mocks/mock_status_persistence.go -package=mocks -source=persistence.go StatusPersistence

const (
	// StatusFileName is the name of the status file
	StatusFileName = "status.json"

	// LockFileName is the name of the advisory lock file guarding the
	// status file. It lives beside status.json and is never renamed, so
	// the lock survives the atomic replace of the status file itself.
	LockFileName = "status.lock"

	// lockRetryDelay is how often lock acquisition is retried until the
	// context is done
	lockRetryDelay = 50 * time.Millisecond
)

// DefaultBasePath returns the default directory for status files,
// following the XDG base directory convention.
func DefaultBasePath() string {
	return filepath.Join(xdg.DataHome, "chef-dispatch", "status")
}

// StatusPersistence defines the interface for sync status persistence
//
//nolint:revive // This name is fine
type StatusPersistence interface {
	// SaveStatus saves the sync status to persistent storage for a specific table
	SaveStatus(ctx context.Context, tableName string, status *SyncStatus) error

	// LoadStatus loads the sync status from persistent storage for a specific table
	// Returns an empty SyncStatus if the file doesn't exist (first run)
	LoadStatus(ctx context.Context, tableName string) (*SyncStatus, error)

	// LoadAllStatus loads sync status for all tables
	LoadAllStatus(ctx context.Context) (map[string]*SyncStatus, error)
}

// fileStatusPersistence implements StatusPersistence using local filesystem.
// Status files are shared between the server and CLI status readers, so
// every access goes through a per-table flock.
type fileStatusPersistence struct {
	basePath string
}

var _ StatusPersistence = (*fileStatusPersistence)(nil)

// NewFileStatusPersistence creates a new file-based status persistence
// basePath is the base directory where per-table status files will be stored
func NewFileStatusPersistence(basePath string) StatusPersistence {
	return &fileStatusPersistence{
		basePath: basePath,
	}
}

// tableDir builds the per-table status directory, rejecting names that
// would escape the base directory.
func (f *fileStatusPersistence) tableDir(tableName string) (string, error) {
	if tableName == "" {
		return "", fmt.Errorf("table name cannot be empty")
	}
	if filepath.Base(tableName) != tableName {
		return "", fmt.Errorf("invalid table name: %s", tableName)
	}
	return filepath.Join(f.basePath, tableName), nil
}

// SaveStatus saves the sync status to a JSON file in a table-specific directory
func (f *fileStatusPersistence) SaveStatus(ctx context.Context, tableName string, status *SyncStatus) error {
	tableDir, err := f.tableDir(tableName)
	if err != nil {
		return err
	}

	// Create table-specific directory if it doesn't exist
	if err := os.MkdirAll(tableDir, 0750); err != nil {
		return fmt.Errorf("failed to create status directory for table '%s': %w", tableName, err)
	}

	// Take the exclusive lock so a concurrent reader never observes a
	// half-written file
	fileLock := flock.New(filepath.Join(tableDir, LockFileName))
	locked, err := fileLock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to lock status file for table '%s': %w", tableName, err)
	}
	if !locked {
		return fmt.Errorf("could not acquire status lock for table '%s'", tableName)
	}
	defer fileLock.Unlock() //nolint:errcheck // Unlock error leaves a stale advisory lock at worst

	filePath := filepath.Join(tableDir, StatusFileName)

	// Marshal status to JSON with pretty printing for readability
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status data for table '%s': %w", tableName, err)
	}

	// Write to temporary file first for atomic operation
	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary status file for table '%s': %w", tableName, err)
	}

	// Atomic rename
	if err := os.Rename(tempPath, filePath); err != nil {
		// Clean up temp file on error
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename status file for table '%s': %w", tableName, err)
	}

	return nil
}

// LoadStatus loads the sync status from a JSON file for a specific table
// Returns an empty SyncStatus if the file doesn't exist
func (f *fileStatusPersistence) LoadStatus(ctx context.Context, tableName string) (*SyncStatus, error) {
	tableDir, err := f.tableDir(tableName)
	if err != nil {
		return nil, err
	}
	filePath := filepath.Join(tableDir, StatusFileName)

	// No file yet - this is OK for first run. Checked before taking the
	// lock so a read never creates the table directory.
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return &SyncStatus{}, nil
	}

	fileLock := flock.New(filepath.Join(tableDir, LockFileName))
	locked, err := fileLock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to lock status file for table '%s': %w", tableName, err)
	}
	if !locked {
		return nil, fmt.Errorf("could not acquire status lock for table '%s'", tableName)
	}
	defer fileLock.Unlock() //nolint:errcheck // Unlock error leaves a stale advisory lock at worst

	// Read file
	// #nosec G304 -- filePath is constructed from trusted internal sources (basePath + validated tableName)
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &SyncStatus{}, nil
		}
		return nil, fmt.Errorf("failed to read status file for table '%s': %w", tableName, err)
	}

	// Unmarshal JSON
	var syncStatus SyncStatus
	if err := json.Unmarshal(data, &syncStatus); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status data for table '%s': %w", tableName, err)
	}

	return &syncStatus, nil
}

// LoadAllStatus loads sync status for all tables
func (f *fileStatusPersistence) LoadAllStatus(ctx context.Context) (map[string]*SyncStatus, error) {
	result := make(map[string]*SyncStatus)

	// Read all subdirectories in the base path
	entries, err := os.ReadDir(f.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			// Base directory doesn't exist yet, return empty map
			return result, nil
		}
		return nil, fmt.Errorf("failed to read status directory: %w", err)
	}

	// For each subdirectory, try to load status
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		tableName := entry.Name()
		syncStatus, err := f.LoadStatus(ctx, tableName)
		if err != nil {
			// Skip tables that fail to load so one corrupt file doesn't
			// hide the rest
			continue
		}

		result[tableName] = syncStatus
	}

	return result, nil
}
