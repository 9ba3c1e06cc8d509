// Package coordinator provides background synchronization coordination
// for dispatch tables.
//
// This package implements the orchestration layer that schedules and
// executes sync operations. It sits on top of sync.Manager and handles:
//
//   - One sync loop per configured table (ticker, manual trigger, file watch)
//   - Warm start from stored snapshots before the first sync
//   - Status persistence and thread-safe access
//   - Graceful shutdown through context cancellation
//
// # Architecture
//
// The coordinator separates concerns between:
//
//   - internal/sync: Domain logic (what/when to sync, how to detect changes)
//   - internal/sync/coordinator: Orchestration (scheduling, lifecycle, state)
//   - cmd serve: Process lifecycle (starts the coordinator next to the server)
//
// # Sync Decision Flow
//
//  1. A ticker fires, a manual trigger arrives, or the file watcher
//     reports a change
//  2. The worker calls checkSync()
//  3. checkSync() calls Manager.ShouldSync() to decide
//  4. If needed, performSync() executes the sync
//  5. Status is updated and persisted at each phase transition
//
// # Thread Safety
//
// Each table worker maintains an in-memory cache of its sync status that
// is read by the sync check and written around sync execution. All access
// goes through withStatus, which holds the worker's mutex. Workers for
// different tables run independently.
//
// # Error Handling
//
//   - Failed syncs are logged and the status moves to "Failed"
//   - Failed tables retry on the next check regardless of source hash
//   - Status persistence errors are logged but don't stop the sync
package coordinator
