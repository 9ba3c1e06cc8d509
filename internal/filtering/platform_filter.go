package filtering

import "fmt"

// PlatformFilter handles platform-based filtering using exact string matching
// against the platform tokens a table entry declares.
type PlatformFilter interface {
	// ShouldInclude determines if an entry with the given platform tokens should
	// be included based on include/exclude token lists
	// Returns (shouldInclude bool, reason string)
	ShouldInclude(platforms []string, include, exclude []string) (bool, string)
}

// DefaultPlatformFilter implements platform filtering using exact string matching
type DefaultPlatformFilter struct{}

// NewDefaultPlatformFilter creates a new DefaultPlatformFilter
func NewDefaultPlatformFilter() *DefaultPlatformFilter {
	return &DefaultPlatformFilter{}
}

// ShouldInclude determines if an entry with the given platform tokens should be
// included based on include/exclude token lists.
//
// Entries without platform tokens apply to every platform, so they are always
// included regardless of the configured lists.
//
// Logic:
// 1. If the entry declares no platform tokens -> include (applies everywhere)
// 2. If exclude tokens are specified and any entry token matches -> exclude (exclude takes precedence)
// 3. If include tokens are specified and any entry token matches -> include
// 4. If include tokens are specified and no entry token matches -> exclude
// 5. If only exclude tokens are specified (no include) and no token matches -> include
// 6. If no platform filters are specified -> include (default behavior)
func (*DefaultPlatformFilter) ShouldInclude(platforms []string, include, exclude []string) (bool, string) {
	if len(platforms) == 0 {
		return true, "entry declares no platform tokens, applies to all platforms"
	}

	// Check exclude tokens first (exclude takes precedence)
	if len(exclude) > 0 {
		for _, entryToken := range platforms {
			for _, excludeToken := range exclude {
				if entryToken == excludeToken {
					return false, fmt.Sprintf("excluded by platform '%s'", excludeToken)
				}
			}
		}
	}

	// If include tokens are specified, at least one entry token must match
	if len(include) > 0 {
		for _, entryToken := range platforms {
			for _, includeToken := range include {
				if entryToken == includeToken {
					return true, fmt.Sprintf("included by platform '%s'", includeToken)
				}
			}
		}
		// Include tokens specified but no match found
		return false, fmt.Sprintf("no matching platforms found in include list %v (entry platforms: %v)", include, platforms)
	}

	// No include tokens specified (or empty), and didn't match exclude tokens
	if len(exclude) > 0 {
		return true, fmt.Sprintf("no matching platforms in exclude list %v (entry platforms: %v)", exclude, platforms)
	}
	return true, "no platform filters specified"
}
