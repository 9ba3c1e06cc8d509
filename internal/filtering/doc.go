// Package filtering provides entry filtering capabilities for dispatch
// table documents.
//
// This package implements a filtering system that allows a deployment
// to selectively include or exclude table entries based on key patterns
// and platform tokens. The filtering system supports both include and
// exclude rules with exclude taking precedence over include.
//
// # Architecture
//
// The filtering system consists of three main components:
//
//   - KeyFilter: Handles registry key filtering using glob patterns
//   - PlatformFilter: Handles platform-token filtering using exact string matching
//   - FilterService: Coordinates both key and platform filtering
//
// # Key Filtering
//
// Key filtering uses glob patterns, supporting wildcards like '*', '?',
// and character classes '[...]'. Patterns match across '/' so keys with
// path-like structure filter naturally. Examples:
//
//   - "nginx/*" matches "nginx/service", "nginx/worker_processes"
//   - "db?" matches "db1", "db2" but not "database"
//
// # Platform Filtering
//
// Platform filtering uses exact string matching against the platform
// tokens an entry declares. Entries that declare no platform filter
// apply to every platform and are always kept.
//
// # Filtering Logic
//
// Both key and platform filters follow the same precedence rules:
//
//  1. If exclude patterns/tokens are specified and match -> exclude (precedence)
//  2. If include patterns/tokens are specified and match -> include
//  3. If include patterns/tokens are specified but no match -> exclude
//  4. If only exclude patterns/tokens specified and no match -> include
//  5. If no filters specified -> include (default behavior)
//
// For an entry to be kept in the loaded table, it must pass BOTH key
// and platform filtering (logical AND).
//
// # Usage Example
//
//	service := NewDefaultFilterService()
//	filter := &config.FilterConfig{
//		Keys: &config.FilterCriteria{
//			Include: []string{"nginx/*", "apache/*"},
//			Exclude: []string{"*/experimental"},
//		},
//		Platforms: &config.FilterCriteria{
//			Exclude: []string{"windows"},
//		},
//	}
//
//	filteredDoc, err := service.ApplyFilters(ctx, originalDoc, filter)
//
// The filtering system logs the specific reason for each inclusion or
// exclusion decision.
package filtering
