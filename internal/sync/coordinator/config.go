package coordinator

import (
	"log/slog"
	"time"

	"github.com/involucelate/chef/internal/config"
)

// defaultSyncInterval replaces intervals that fail to parse
const defaultSyncInterval = time.Minute

// getSyncInterval extracts the ticker interval from a table's sync policy.
// Zero means no periodic checks: watch-only tables rely on file events
// and manual triggers instead of a ticker.
func getSyncInterval(policy *config.SyncPolicyConfig) time.Duration {
	if policy == nil || policy.Interval == "" {
		return 0
	}

	interval, err := time.ParseDuration(policy.Interval)
	if err != nil {
		slog.Warn("Invalid sync interval, using default",
			"interval", policy.Interval,
			"default", defaultSyncInterval)
		return defaultSyncInterval
	}

	return interval
}
