// Package sync keeps the in-memory dispatch tables aligned with their
// configured sources.
//
// # Core Interfaces
//
//   - Manager: orchestrates sync operations for a single table
//   - DataChangeDetector: detects changes in source data using hash comparison
//   - AutomaticSyncChecker: manages time-based automatic sync scheduling
//
// The coordinator subpackage provides the orchestration layer that
// schedules and executes background sync operations: per-table ticker
// loops, manual triggers, file watching, and status persistence.
//
// # Sync Decision Making
//
// Manager.ShouldSync evaluates multiple factors to determine if a sync
// is needed, returning a decision (bool) and a reason (string):
//
//   - Table state (never synced, failed, complete)
//   - Filter configuration changes (via hash comparison)
//   - Source data changes (via hash comparison)
//   - Sync interval elapsed (time-based automatic sync)
//   - Manual sync requests
//
// Reasons that indicate sync is NOT needed: ReasonAlreadyInProgress,
// ReasonManualNoChanges, ReasonErrorCheckingSyncNeed, ReasonUpToDate.
// Reasons that indicate sync IS needed: ReasonTableNotReady,
// ReasonFilterChanged, ReasonSourceDataChanged,
// ReasonErrorCheckingChanges, ReasonManualWithChanges.
package sync
