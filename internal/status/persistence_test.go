package status

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testTableName = "test-table"

func TestFileStatusPersistence_SaveAndLoad(t *testing.T) {
	t.Parallel()

	// Create temporary directory for test
	tmpDir := t.TempDir()

	persistence := NewFileStatusPersistence(tmpDir)
	require.NotNil(t, persistence)

	tableName := testTableName
	// Create a test status
	now := time.Now()
	testStatus := &SyncStatus{
		Phase:        SyncPhaseComplete,
		Message:      "Test sync completed",
		LastAttempt:  &now,
		AttemptCount: 1,
		LastSyncTime: &now,
		LastSyncHash: "abc123",
		EntryCount:   5,
		RunID:        "run-1",
	}

	// Save the status
	ctx := context.Background()
	err := persistence.SaveStatus(ctx, tableName, testStatus)
	require.NoError(t, err)

	// Verify file was created
	expectedPath := filepath.Join(tmpDir, tableName, StatusFileName)
	_, err = os.Stat(expectedPath)
	require.NoError(t, err)

	// Load the status back
	loaded, err := persistence.LoadStatus(ctx, tableName)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, testStatus.Phase, loaded.Phase)
	require.Equal(t, testStatus.Message, loaded.Message)
	require.Equal(t, testStatus.AttemptCount, loaded.AttemptCount)
	require.Equal(t, testStatus.LastSyncHash, loaded.LastSyncHash)
	require.Equal(t, testStatus.EntryCount, loaded.EntryCount)
	require.Equal(t, testStatus.RunID, loaded.RunID)
}

func TestFileStatusPersistence_LoadNonExistent(t *testing.T) {
	t.Parallel()

	// Create temporary directory for test
	tmpDir := t.TempDir()

	persistence := NewFileStatusPersistence(tmpDir)
	require.NotNil(t, persistence)

	tableName := testTableName

	// Load non-existent status should return empty status
	ctx := context.Background()
	loaded, err := persistence.LoadStatus(ctx, tableName)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, SyncPhase(""), loaded.Phase)
	require.Equal(t, "", loaded.Message)

	// Loading must not create the table directory
	_, err = os.Stat(filepath.Join(tmpDir, tableName))
	require.True(t, os.IsNotExist(err))
}

func TestFileStatusPersistence_UpdateStatus(t *testing.T) {
	t.Parallel()

	// Create temporary directory for test
	tmpDir := t.TempDir()

	persistence := NewFileStatusPersistence(tmpDir)
	require.NotNil(t, persistence)

	tableName := testTableName
	ctx := context.Background()

	// Save initial status
	now1 := time.Now()
	initialStatus := &SyncStatus{
		Phase:        SyncPhaseSyncing,
		Message:      "Syncing...",
		LastAttempt:  &now1,
		AttemptCount: 1,
	}
	err := persistence.SaveStatus(ctx, tableName, initialStatus)
	require.NoError(t, err)

	// Update status
	now2 := time.Now()
	updatedStatus := &SyncStatus{
		Phase:        SyncPhaseComplete,
		Message:      "Sync completed",
		LastAttempt:  &now2,
		AttemptCount: 0,
		LastSyncTime: &now2,
		LastSyncHash: "xyz789",
		EntryCount:   10,
	}
	err = persistence.SaveStatus(ctx, tableName, updatedStatus)
	require.NoError(t, err)

	// Load and verify it was updated
	loaded, err := persistence.LoadStatus(ctx, tableName)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, SyncPhaseComplete, loaded.Phase)
	require.Equal(t, "Sync completed", loaded.Message)
	require.Equal(t, 0, loaded.AttemptCount)
	require.Equal(t, "xyz789", loaded.LastSyncHash)
	require.Equal(t, 10, loaded.EntryCount)
}

func TestFileStatusPersistence_AtomicWrite(t *testing.T) {
	t.Parallel()

	// Create temporary directory for test
	tmpDir := t.TempDir()

	persistence := NewFileStatusPersistence(tmpDir)
	require.NotNil(t, persistence)

	tableName := testTableName
	ctx := context.Background()

	// Save status
	now := time.Now()
	testStatus := &SyncStatus{
		Phase:       SyncPhaseComplete,
		LastAttempt: &now,
	}
	err := persistence.SaveStatus(ctx, tableName, testStatus)
	require.NoError(t, err)

	// Verify temporary file was cleaned up
	statusPath := filepath.Join(tmpDir, tableName, StatusFileName)
	tempPath := statusPath + ".tmp"
	_, err = os.Stat(tempPath)
	require.True(t, os.IsNotExist(err), "Temporary file should not exist after save")
}

func TestFileStatusPersistence_SharedBetweenInstances(t *testing.T) {
	t.Parallel()

	// Two persistence instances over the same directory model a server
	// and a CLI status reader sharing the file
	tmpDir := t.TempDir()
	writer := NewFileStatusPersistence(tmpDir)
	reader := NewFileStatusPersistence(tmpDir)

	ctx := context.Background()

	err := writer.SaveStatus(ctx, testTableName, &SyncStatus{
		Phase:        SyncPhaseComplete,
		LastSyncHash: "shared",
	})
	require.NoError(t, err)

	loaded, err := reader.LoadStatus(ctx, testTableName)
	require.NoError(t, err)
	require.Equal(t, SyncPhaseComplete, loaded.Phase)
	require.Equal(t, "shared", loaded.LastSyncHash)
}

func TestFileStatusPersistence_RejectsBadTableNames(t *testing.T) {
	t.Parallel()

	persistence := NewFileStatusPersistence(t.TempDir())
	ctx := context.Background()

	for _, name := range []string{"", "../escape", "nested/name"} {
		err := persistence.SaveStatus(ctx, name, &SyncStatus{Phase: SyncPhaseComplete})
		require.Error(t, err, "name %q must be rejected", name)

		_, err = persistence.LoadStatus(ctx, name)
		require.Error(t, err, "name %q must be rejected", name)
	}
}

func TestFileStatusPersistence_LoadAllStatus(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	persistence := NewFileStatusPersistence(tmpDir)

	ctx := context.Background()

	// Create multiple test statuses
	now := time.Now()
	status1 := &SyncStatus{
		Phase:        SyncPhaseComplete,
		Message:      "Table 1 sync completed",
		LastAttempt:  &now,
		AttemptCount: 1,
		LastSyncHash: "hash1",
		EntryCount:   5,
	}
	status2 := &SyncStatus{
		Phase:        SyncPhaseSyncing,
		Message:      "Table 2 syncing",
		LastAttempt:  &now,
		AttemptCount: 2,
		LastSyncHash: "hash2",
		EntryCount:   10,
	}
	status3 := &SyncStatus{
		Phase:        SyncPhaseFailed,
		Message:      "Table 3 failed",
		LastAttempt:  &now,
		AttemptCount: 3,
		EntryCount:   0,
	}

	// Save statuses for multiple tables
	err := persistence.SaveStatus(ctx, "table1", status1)
	require.NoError(t, err)
	err = persistence.SaveStatus(ctx, "table2", status2)
	require.NoError(t, err)
	err = persistence.SaveStatus(ctx, "table3", status3)
	require.NoError(t, err)

	// Load all statuses
	result, err := persistence.LoadAllStatus(ctx)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Len(t, result, 3)

	// Verify all statuses were retrieved
	require.Contains(t, result, "table1")
	require.Contains(t, result, "table2")
	require.Contains(t, result, "table3")

	// Verify content
	require.Equal(t, SyncPhaseComplete, result["table1"].Phase)
	require.Equal(t, "Table 1 sync completed", result["table1"].Message)
	require.Equal(t, 5, result["table1"].EntryCount)

	require.Equal(t, SyncPhaseSyncing, result["table2"].Phase)
	require.Equal(t, "Table 2 syncing", result["table2"].Message)
	require.Equal(t, 10, result["table2"].EntryCount)

	require.Equal(t, SyncPhaseFailed, result["table3"].Phase)
	require.Equal(t, "Table 3 failed", result["table3"].Message)
	require.Equal(t, 0, result["table3"].EntryCount)
}

func TestFileStatusPersistence_LoadAllStatus_EmptyDirectory(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	persistence := NewFileStatusPersistence(tmpDir)

	ctx := context.Background()

	// Load all from empty directory
	result, err := persistence.LoadAllStatus(ctx)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Empty(t, result)
}

func TestFileStatusPersistence_LoadAllStatus_NonExistentDirectory(t *testing.T) {
	t.Parallel()

	// Use a non-existent base directory
	tmpDir := filepath.Join(t.TempDir(), "nonexistent")
	persistence := NewFileStatusPersistence(tmpDir)

	ctx := context.Background()

	// Load all should return empty result when directory doesn't exist
	result, err := persistence.LoadAllStatus(ctx)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Empty(t, result)
}

func TestFileStatusPersistence_LoadAllStatus_PartialFailure(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	persistence := NewFileStatusPersistence(tmpDir)

	ctx := context.Background()

	// Create one valid status
	now := time.Now()
	status1 := &SyncStatus{
		Phase:       SyncPhaseComplete,
		LastAttempt: &now,
		EntryCount:  5,
	}
	err := persistence.SaveStatus(ctx, "table1", status1)
	require.NoError(t, err)

	// Create a table directory with invalid JSON file
	invalidDir := filepath.Join(tmpDir, "invalid-table")
	err = os.MkdirAll(invalidDir, 0750)
	require.NoError(t, err)
	invalidFile := filepath.Join(invalidDir, StatusFileName)
	err = os.WriteFile(invalidFile, []byte("{invalid json}"), 0600)
	require.NoError(t, err)

	// LoadAllStatus should return the valid status and skip the invalid one
	result, err := persistence.LoadAllStatus(ctx)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Len(t, result, 1)
	require.Contains(t, result, "table1")
	require.NotContains(t, result, "invalid-table")
}

func TestDefaultBasePath(t *testing.T) {
	t.Parallel()

	path := DefaultBasePath()
	require.NotEmpty(t, path)
	require.Contains(t, path, "chef-dispatch")
}
