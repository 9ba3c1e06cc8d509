package filtering

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/involucelate/chef/internal/config"
	"github.com/involucelate/chef/internal/table"
)

// FilterService coordinates key and platform filtering to apply table filters
type FilterService interface {
	// ApplyFilters filters a table document based on filter configuration
	ApplyFilters(
		ctx context.Context,
		doc *table.Document,
		filter *config.FilterConfig,
	) (*table.Document, error)
}

// defaultFilterService implements filtering coordination using key and platform filters
type defaultFilterService struct {
	keyFilter      KeyFilter
	platformFilter PlatformFilter
}

// NewDefaultFilterService creates a new defaultFilterService with default filter implementations
func NewDefaultFilterService() FilterService {
	return &defaultFilterService{
		keyFilter:      NewDefaultKeyFilter(),
		platformFilter: NewDefaultPlatformFilter(),
	}
}

// NewFilterService creates a new defaultFilterService with custom filter implementations
func NewFilterService(keyFilter KeyFilter, platformFilter PlatformFilter) FilterService {
	return &defaultFilterService{
		keyFilter:      keyFilter,
		platformFilter: platformFilter,
	}
}

// ApplyFilters filters a table document based on filter configuration
//
// The filtering process:
// 1. If no filter is specified, return the original document unchanged
// 2. Create a new document with the same version but an empty entry list
// 3. For each entry, apply key and platform filtering
// 4. Only keep entries that pass both key and platform filters
// 5. Return the filtered document
func (s *defaultFilterService) ApplyFilters(
	_ context.Context,
	doc *table.Document,
	filter *config.FilterConfig) (*table.Document, error) {
	// If no filter is specified, return original document
	if filter == nil {
		slog.Debug("No filter specified, returning original table document")
		return doc, nil
	}

	slog.Info("Applying table filters",
		"originalEntryCount", len(doc.Entries))

	// Filtered entries keep document order; order carries the
	// newest-first tie-break when the document is replayed.
	filtered := &table.Document{
		Version: doc.Version,
		Entries: make([]table.Entry, 0, len(doc.Entries)),
	}

	// Extract filter criteria
	var keyInclude, keyExclude, platformInclude, platformExclude []string
	if filter.Keys != nil {
		keyInclude = filter.Keys.Include
		keyExclude = filter.Keys.Exclude
	}
	if filter.Platforms != nil {
		platformInclude = filter.Platforms.Include
		platformExclude = filter.Platforms.Exclude
	}

	includedCount := 0
	excludedCount := 0

	for _, entry := range doc.Entries {
		platforms := entryPlatforms(&entry)
		included, reason := s.shouldIncludeEntryWithReason(
			entry.Key,
			platforms,
			keyInclude,
			keyExclude,
			platformInclude,
			platformExclude,
		)
		if included {
			filtered.Entries = append(filtered.Entries, entry)
			includedCount++
			slog.Debug("Including table entry",
				"key", entry.Key,
				"platforms", platforms,
				"reason", reason)
		} else {
			excludedCount++
			slog.Info("Excluding table entry",
				"key", entry.Key,
				"platforms", platforms,
				"reason", reason)
		}
	}

	slog.Info("Table filtering completed",
		"includedEntries", includedCount,
		"excludedEntries", excludedCount)

	return filtered, nil
}

// entryPlatforms folds the entry's platform spellings into one token list.
// The legacy on_platform and on_platforms columns count as platform tokens
// for filtering purposes, matching how they are folded at registration.
func entryPlatforms(e *table.Entry) []string {
	if len(e.OnPlatform) == 0 && len(e.OnPlatforms) == 0 {
		return e.Platform
	}
	platforms := make([]string, 0, len(e.Platform)+len(e.OnPlatform)+len(e.OnPlatforms))
	platforms = append(platforms, e.Platform...)
	platforms = append(platforms, e.OnPlatform...)
	platforms = append(platforms, e.OnPlatforms...)
	return platforms
}

// shouldIncludeEntryWithReason determines if an entry should be kept and provides detailed reasoning
// Both key and platform filters must pass for an entry to be kept
func (s *defaultFilterService) shouldIncludeEntryWithReason(
	key string,
	platforms []string,
	keyInclude, keyExclude, platformInclude, platformExclude []string) (bool, string) {
	// Apply key filtering first
	keyIncluded, keyReason := s.keyFilter.ShouldInclude(key, keyInclude, keyExclude)
	if !keyIncluded {
		return false, fmt.Sprintf("key filter: %s", keyReason)
	}

	// Apply platform filtering
	platformIncluded, platformReason := s.platformFilter.ShouldInclude(platforms, platformInclude, platformExclude)
	if !platformIncluded {
		return false, fmt.Sprintf("platform filter: %s", platformReason)
	}

	// Both filters passed - determine the inclusion reason
	inclusionReasons := []string{}
	if len(keyInclude) > 0 || len(keyExclude) > 0 {
		inclusionReasons = append(inclusionReasons, fmt.Sprintf("key filter: %s", keyReason))
	}
	if len(platformInclude) > 0 || len(platformExclude) > 0 {
		inclusionReasons = append(inclusionReasons, fmt.Sprintf("platform filter: %s", platformReason))
	}

	if len(inclusionReasons) == 0 {
		return true, "no filters specified, default include"
	}

	return true, "passed all filters: " + strings.Join(inclusionReasons, " AND ")
}
