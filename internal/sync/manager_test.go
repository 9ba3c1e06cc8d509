package sync

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/involucelate/chef/internal/config"
	"github.com/involucelate/chef/internal/service/inmemory"
	servicemocks "github.com/involucelate/chef/internal/service/mocks"
	"github.com/involucelate/chef/internal/sources"
	sourcemocks "github.com/involucelate/chef/internal/sources/mocks"
	"github.com/involucelate/chef/internal/status"
	"github.com/involucelate/chef/internal/table"
)

// dispatchDocJSON is the three-entry dispatch table document written to
// disk as the source fixture for sync tests.
const dispatchDocJSON = `{
  "version": "2026-08-01",
  "entries": [
    {"key": "service[web]", "value": "httpd"},
    {"key": "service[web]", "value": "nginx", "platform": "ubuntu"},
    {"key": "package[ssl]", "value": "openssl", "os": ["linux", "darwin"]}
  ]
}`

func writeDocFixture(t *testing.T) (path string, hash string) {
	t.Helper()

	dir := t.TempDir()
	path = filepath.Join(dir, "dispatch.json")
	data := []byte(dispatchDocJSON)
	require.NoError(t, os.WriteFile(path, data, 0644))

	return path, fmt.Sprintf("%x", sha256.Sum256(data))
}

func fileTableConfig(name, path string) *config.TableConfig {
	return &config.TableConfig{
		Name: name,
		File: &config.FileConfig{Path: path},
	}
}

func TestNewDefaultSyncManager(t *testing.T) {
	t.Parallel()

	sourceHandlerFactory := sources.NewSourceHandlerFactory()
	storageManager := sources.NewFileStorageManager(t.TempDir())

	syncManager := NewDefaultSyncManager(sourceHandlerFactory, storageManager, inmemory.New())

	assert.NotNil(t, syncManager)
	assert.IsType(t, &defaultSyncManager{}, syncManager)
}

func TestDefaultSyncManager_ShouldSync(t *testing.T) {
	t.Parallel()

	testFilePath, testHash := writeDocFixture(t)

	keysOnlyFilter := &config.FilterConfig{
		Keys: &config.FilterCriteria{Include: []string{"service*"}},
	}

	twoMinutesAgo := time.Now().Add(-2 * time.Minute)

	tests := []struct {
		name                string
		manualSyncRequested bool
		tblCfg              *config.TableConfig
		syncStatus          *status.SyncStatus
		expectedSyncNeeded  bool
		expectedReason      string
	}{
		{
			name:   "table in failed state retries even with unchanged source",
			tblCfg: fileTableConfig("production", testFilePath),
			syncStatus: &status.SyncStatus{
				Phase:        status.SyncPhaseFailed,
				LastSyncHash: testHash,
			},
			expectedSyncNeeded: true,
			expectedReason:     ReasonTableNotReady,
		},
		{
			name:   "sync not started when one is already in progress",
			tblCfg: fileTableConfig("production", testFilePath),
			syncStatus: &status.SyncStatus{
				Phase: status.SyncPhaseSyncing,
			},
			expectedSyncNeeded: false,
			expectedReason:     ReasonAlreadyInProgress,
		},
		{
			name:               "table that never synced needs a sync",
			tblCfg:             fileTableConfig("production", testFilePath),
			syncStatus:         &status.SyncStatus{},
			expectedSyncNeeded: true,
			expectedReason:     ReasonTableNotReady,
		},
		{
			name:                "manual sync with unchanged data is skipped",
			manualSyncRequested: true,
			tblCfg:              fileTableConfig("production", testFilePath),
			syncStatus: &status.SyncStatus{
				Phase:        status.SyncPhaseComplete,
				LastSyncHash: testHash,
			},
			expectedSyncNeeded: false,
			expectedReason:     ReasonManualNoChanges,
		},
		{
			name:                "manual sync with changed data proceeds",
			manualSyncRequested: true,
			tblCfg:              fileTableConfig("production", testFilePath),
			syncStatus: &status.SyncStatus{
				Phase:        status.SyncPhaseComplete,
				LastSyncHash: "stale-hash",
			},
			expectedSyncNeeded: true,
			expectedReason:     ReasonManualWithChanges,
		},
		{
			name:   "filter change forces sync even with unchanged data",
			tblCfg: fileTableConfig("production", testFilePath),
			syncStatus: &status.SyncStatus{
				Phase:                 status.SyncPhaseComplete,
				LastSyncHash:          testHash,
				LastAppliedFilterHash: FilterHash(keysOnlyFilter),
			},
			expectedSyncNeeded: true,
			expectedReason:     ReasonFilterChanged,
		},
		{
			name:   "completed table with matching hashes is up to date",
			tblCfg: fileTableConfig("production", testFilePath),
			syncStatus: &status.SyncStatus{
				Phase:                 status.SyncPhaseComplete,
				LastSyncHash:          testHash,
				LastAppliedFilterHash: FilterHash(nil),
			},
			expectedSyncNeeded: false,
			expectedReason:     ReasonUpToDate,
		},
		{
			name: "elapsed interval with changed data triggers sync",
			tblCfg: &config.TableConfig{
				Name:       "production",
				File:       &config.FileConfig{Path: testFilePath},
				SyncPolicy: &config.SyncPolicyConfig{Interval: "1m"},
			},
			syncStatus: &status.SyncStatus{
				Phase:        status.SyncPhaseComplete,
				LastSyncHash: "stale-hash",
				LastAttempt:  &twoMinutesAgo,
			},
			expectedSyncNeeded: true,
			expectedReason:     ReasonSourceDataChanged,
		},
		{
			name: "elapsed interval with unchanged data stays up to date",
			tblCfg: &config.TableConfig{
				Name:       "production",
				File:       &config.FileConfig{Path: testFilePath},
				SyncPolicy: &config.SyncPolicyConfig{Interval: "1m"},
			},
			syncStatus: &status.SyncStatus{
				Phase:        status.SyncPhaseComplete,
				LastSyncHash: testHash,
				LastAttempt:  &twoMinutesAgo,
			},
			expectedSyncNeeded: false,
			expectedReason:     ReasonUpToDate,
		},
		{
			name: "invalid interval reports a check error",
			tblCfg: &config.TableConfig{
				Name:       "production",
				File:       &config.FileConfig{Path: testFilePath},
				SyncPolicy: &config.SyncPolicyConfig{Interval: "not-a-duration"},
			},
			syncStatus: &status.SyncStatus{
				Phase: status.SyncPhaseComplete,
			},
			expectedSyncNeeded: false,
			expectedReason:     ReasonErrorCheckingSyncNeed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sourceHandlerFactory := sources.NewSourceHandlerFactory()
			storageManager := sources.NewFileStorageManager(t.TempDir())
			syncManager := NewDefaultSyncManager(sourceHandlerFactory, storageManager, inmemory.New())

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			syncNeeded, reason, nextSyncTime := syncManager.ShouldSync(ctx, tt.tblCfg, tt.syncStatus, tt.manualSyncRequested)

			assert.Equal(t, tt.expectedSyncNeeded, syncNeeded)
			assert.Equal(t, tt.expectedReason, reason)
			assert.Nil(t, nextSyncTime, "timing is driven by the sync interval, not ShouldSync")
		})
	}
}

func TestDefaultSyncManager_PerformSync(t *testing.T) {
	t.Parallel()

	testFilePath, testHash := writeDocFixture(t)

	tests := []struct {
		name               string
		tblCfg             *config.TableConfig
		setupMocks         func(dispatch *servicemocks.MockDispatchService, storage *sourcemocks.MockStorageManager)
		expectedEntryCount int
		expectedStage      string
		errorContains      string
	}{
		{
			name:   "successful sync applies and snapshots the document",
			tblCfg: fileTableConfig("production", testFilePath),
			setupMocks: func(dispatch *servicemocks.MockDispatchService, storage *sourcemocks.MockStorageManager) {
				dispatch.EXPECT().
					ReplaceTable(gomock.Any(), "production", gomock.Any()).
					DoAndReturn(func(_ context.Context, _ string, doc *table.Document) (int, error) {
						return len(doc.Entries), nil
					})
				storage.EXPECT().
					Store(gomock.Any(), "production", gomock.Any()).
					Return(nil)
			},
			expectedEntryCount: 3,
		},
		{
			name: "key filtering narrows the applied document",
			tblCfg: &config.TableConfig{
				Name: "production",
				File: &config.FileConfig{Path: testFilePath},
				Filter: &config.FilterConfig{
					Keys: &config.FilterCriteria{Include: []string{"service*"}},
				},
			},
			setupMocks: func(dispatch *servicemocks.MockDispatchService, storage *sourcemocks.MockStorageManager) {
				dispatch.EXPECT().
					ReplaceTable(gomock.Any(), "production", gomock.Any()).
					DoAndReturn(func(_ context.Context, _ string, doc *table.Document) (int, error) {
						return len(doc.Entries), nil
					})
				storage.EXPECT().
					Store(gomock.Any(), "production", gomock.Any()).
					Return(nil)
			},
			expectedEntryCount: 2,
		},
		{
			name:          "missing source file fails at the fetch stage",
			tblCfg:        fileTableConfig("production", "/data/missing-dispatch.json"),
			expectedStage: StageFetch,
			errorContains: "file not found",
		},
		{
			name: "unconfigured source fails at the validation stage",
			tblCfg: &config.TableConfig{
				Name: "production",
			},
			expectedStage: StageValidation,
			errorContains: "unsupported source type",
		},
		{
			name:   "apply failure is reported without snapshotting",
			tblCfg: fileTableConfig("production", testFilePath),
			setupMocks: func(dispatch *servicemocks.MockDispatchService, _ *sourcemocks.MockStorageManager) {
				dispatch.EXPECT().
					ReplaceTable(gomock.Any(), "production", gomock.Any()).
					Return(0, errors.New("dispatch unavailable"))
			},
			expectedStage: StageApply,
			errorContains: "dispatch unavailable",
		},
		{
			name:   "snapshot failure marks the sync failed",
			tblCfg: fileTableConfig("production", testFilePath),
			setupMocks: func(dispatch *servicemocks.MockDispatchService, storage *sourcemocks.MockStorageManager) {
				dispatch.EXPECT().
					ReplaceTable(gomock.Any(), "production", gomock.Any()).
					Return(3, nil)
				storage.EXPECT().
					Store(gomock.Any(), "production", gomock.Any()).
					Return(errors.New("disk full"))
			},
			expectedStage: StageStorage,
			errorContains: "disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockDispatch := servicemocks.NewMockDispatchService(ctrl)
			mockStorage := sourcemocks.NewMockStorageManager(ctrl)
			if tt.setupMocks != nil {
				tt.setupMocks(mockDispatch, mockStorage)
			}

			syncManager := NewDefaultSyncManager(sources.NewSourceHandlerFactory(), mockStorage, mockDispatch)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			result, syncErr := syncManager.PerformSync(ctx, tt.tblCfg)

			if tt.expectedStage != "" {
				require.NotNil(t, syncErr)
				assert.Equal(t, tt.expectedStage, syncErr.Stage)
				assert.Contains(t, syncErr.Error(), tt.errorContains)
				assert.Nil(t, result)
				return
			}

			require.Nil(t, syncErr)
			require.NotNil(t, result)
			assert.Equal(t, tt.expectedEntryCount, result.EntryCount)
			assert.Equal(t, testHash, result.Hash, "result hash is the source data hash, not the filtered one")
			assert.Greater(t, result.Duration, time.Duration(0))
		})
	}
}

func TestDefaultSyncManager_Restore(t *testing.T) {
	t.Parallel()

	snapshotDoc := &table.Document{
		Version: "2026-08-01",
		Entries: []table.Entry{
			{Key: "service[web]", Value: "httpd"},
			{Key: "service[web]", Value: "nginx", Platform: table.StringOrSlice{"ubuntu"}},
		},
	}

	t.Run("restores entries from an existing snapshot", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		storageManager := sources.NewFileStorageManager(t.TempDir())
		require.NoError(t, storageManager.Store(context.Background(), "production", snapshotDoc))

		mockDispatch := servicemocks.NewMockDispatchService(ctrl)
		mockDispatch.EXPECT().
			ReplaceTable(gomock.Any(), "production", gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, doc *table.Document) (int, error) {
				return len(doc.Entries), nil
			})

		syncManager := NewDefaultSyncManager(sources.NewSourceHandlerFactory(), storageManager, mockDispatch)

		restored, err := syncManager.Restore(context.Background(), fileTableConfig("production", "unused.json"))
		require.NoError(t, err)
		assert.Equal(t, 2, restored)
	})

	t.Run("missing snapshot is not an error", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		storageManager := sources.NewFileStorageManager(t.TempDir())
		mockDispatch := servicemocks.NewMockDispatchService(ctrl)

		syncManager := NewDefaultSyncManager(sources.NewSourceHandlerFactory(), storageManager, mockDispatch)

		restored, err := syncManager.Restore(context.Background(), fileTableConfig("production", "unused.json"))
		require.NoError(t, err)
		assert.Zero(t, restored)
	})

	t.Run("apply failure is returned", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		storageManager := sources.NewFileStorageManager(t.TempDir())
		require.NoError(t, storageManager.Store(context.Background(), "production", snapshotDoc))

		mockDispatch := servicemocks.NewMockDispatchService(ctrl)
		mockDispatch.EXPECT().
			ReplaceTable(gomock.Any(), "production", gomock.Any()).
			Return(0, errors.New("dispatch unavailable"))

		syncManager := NewDefaultSyncManager(sources.NewSourceHandlerFactory(), storageManager, mockDispatch)

		_, err := syncManager.Restore(context.Background(), fileTableConfig("production", "unused.json"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to apply table snapshot")
	})
}

func TestFilterHash(t *testing.T) {
	t.Parallel()

	keysFilter := &config.FilterConfig{
		Keys: &config.FilterCriteria{Include: []string{"service*"}},
	}

	assert.Equal(t, FilterHash(keysFilter), FilterHash(keysFilter), "hash is deterministic")
	assert.NotEmpty(t, FilterHash(nil), "nil filter still hashes")
	assert.NotEqual(t, FilterHash(nil), FilterHash(keysFilter))

	widerFilter := &config.FilterConfig{
		Keys: &config.FilterCriteria{Include: []string{"service*", "package*"}},
	}
	assert.NotEqual(t, FilterHash(keysFilter), FilterHash(widerFilter))
}

func TestIsManualSync(t *testing.T) {
	t.Parallel()

	tests := []struct {
		reason   string
		expected bool
	}{
		{ReasonManualWithChanges, true},
		{ReasonManualNoChanges, true},
		{ReasonSourceDataChanged, false},
		{ReasonTableNotReady, false},
		{ReasonFilterChanged, false},
		{ReasonUpToDate, false},
	}

	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			t.Parallel()
			result := IsManualSync(tt.reason)
			assert.Equal(t, tt.expected, result)
		})
	}
}
