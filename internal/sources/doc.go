// Package sources provides interfaces and implementations for retrieving
// dispatch table documents from various external sources.
//
// The package defines the SourceHandler interface which abstracts the
// process of validating source configurations and fetching table
// documents from external sources such as Git repositories, HTTP
// endpoints, or local files.
//
// Architecture:
//   - SourceHandler: Interface for fetching and validating table documents
//   - TableDataValidator: Validates and parses table documents in different formats
//   - FetchResult: Strongly-typed result containing the parsed document with metadata
//   - StorageManager: Persists the last good document per table for warm starts
//
// Current implementations:
//   - GitSourceHandler: Retrieves table documents from Git repositories
//     Supports public and basic-auth repos via HTTPS with branch/tag/commit checkout
//   - HTTPSourceHandler: Retrieves table documents from HTTP/HTTPS endpoints
//     Retries transient failures with exponential backoff
//   - FileSourceHandler: Retrieves table documents from the local filesystem
//     Supports both absolute and relative file paths for development and production
//
// The package provides a factory pattern for creating appropriate
// source handlers based on the table source configuration, and uses
// strongly-typed table.Document instances throughout for type safety.
package sources
