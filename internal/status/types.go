package status

import "time"

// SyncPhase represents the current phase of a synchronization operation
type SyncPhase string

const (
	// SyncPhaseSyncing means sync is currently in progress
	SyncPhaseSyncing SyncPhase = "Syncing"

	// SyncPhaseComplete means sync completed successfully
	SyncPhaseComplete SyncPhase = "Complete"

	// SyncPhaseFailed means sync failed
	SyncPhaseFailed SyncPhase = "Failed"
)

// SyncStatus represents the current state of synchronization for a dispatch table
type SyncStatus struct {
	// Phase represents the current synchronization phase
	Phase SyncPhase `json:"phase"`

	// Message provides additional information about the sync status
	Message string `json:"message,omitempty"`

	// LastAttempt is the timestamp of the last sync attempt
	LastAttempt *time.Time `json:"lastAttempt,omitempty"`

	// AttemptCount is the number of sync attempts since last success
	AttemptCount int `json:"attemptCount,omitempty"`

	// LastSyncTime is the timestamp of the last successful sync
	LastSyncTime *time.Time `json:"lastSyncTime,omitempty"`

	// LastSyncHash is the hash of the last successfully synced data
	// Used to detect changes in source data
	LastSyncHash string `json:"lastSyncHash,omitempty"`

	// LastAppliedFilterHash is the hash of the last applied filter
	// configuration, so a filter change forces a re-sync even when the
	// source data itself is unchanged
	LastAppliedFilterHash string `json:"lastAppliedFilterHash,omitempty"`

	// EntryCount is the number of entries in the table after the last sync
	EntryCount int `json:"entryCount,omitempty"`

	// RunID identifies the sync run that last touched this status
	RunID string `json:"runId,omitempty"`

	// SyncSchedule is the sync interval from configuration (e.g., "30m", "1h")
	// Empty for tables that only sync on demand or via file watch
	SyncSchedule string `json:"syncSchedule,omitempty"`
}
