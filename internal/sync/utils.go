package sync

// IsManualSync reports whether a sync-check reason came from a
// user-initiated trigger rather than a scheduled check.
func IsManualSync(reason string) bool {
	return reason == ReasonManualWithChanges || reason == ReasonManualNoChanges
}
