// Package nodemap implements a priority-ranked, filter-dispatched
// registry. Each key holds an ordered list of candidate values, every
// candidate guarded by attribute filters (platform, platform_version,
// platform_family, os) and optionally by an arbitrary predicate over a
// runtime context. Lookups resolve to the most specific candidate that
// matches the context, so callers can register several implementations
// for one abstract key and let the map pick the right one at runtime.
//
// A Map is built by repeated Set calls, typically at startup, and read
// many times afterwards. It is not safe for concurrent mutation;
// callers that mutate after the build phase must add their own
// synchronization (the service layer in this repository wraps a Map in
// a read-write lock).
package nodemap
