// Package inmemory provides an in-memory implementation of the DispatchService interface
package inmemory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/involucelate/chef/internal/service"
	"github.com/involucelate/chef/internal/table"
	"github.com/involucelate/chef/internal/versions"
	"github.com/involucelate/chef/pkg/node"
	"github.com/involucelate/chef/pkg/nodemap"
)

// TableTypeAPI marks tables created at runtime through Register or
// ReplaceTable rather than from a configured source.
const TableTypeAPI = "api"

// dispatchSvc implements the DispatchService interface
type dispatchSvc struct {
	mu     sync.RWMutex // Protects tables and all tableState fields
	tables map[string]*tableState

	// expected maps configured table names to their source types;
	// readiness requires every expected table to be loaded
	expected     map[string]string
	defaultTable string

	sink *captureSink
	eval nodemap.ConstraintEvaluator
	now  func() time.Time
}

// tableState is one loaded dispatch table plus its bookkeeping
type tableState struct {
	name       string
	sourceType string
	dispatch   *nodemap.Map
	version    string
	entryCount int
	updatedAt  time.Time
}

var _ service.DispatchService = (*dispatchSvc)(nil)

// Option is a functional option for configuring the dispatchSvc
type Option func(*dispatchSvc)

// WithExpectedTable declares a configured table; CheckReadiness fails
// until every expected table has been loaded at least once
func WithExpectedTable(name, sourceType string) Option {
	return func(s *dispatchSvc) {
		if name != "" {
			s.expected[name] = sourceType
		}
	}
}

// WithDefaultTable sets the table used when an operation names none
func WithDefaultTable(name string) Option {
	return func(s *dispatchSvc) {
		if name != "" {
			s.defaultTable = name
		}
	}
}

// WithSink routes registration advisories (conflicts, deprecated filter
// spellings) to sink instead of the default slog sink
func WithSink(sink nodemap.Sink) Option {
	return func(s *dispatchSvc) {
		if sink != nil {
			s.sink.inner = sink
		}
	}
}

// WithConstraintEvaluator replaces the platform_version evaluator used
// by every table
func WithConstraintEvaluator(eval nodemap.ConstraintEvaluator) Option {
	return func(s *dispatchSvc) {
		if eval != nil {
			s.eval = eval
		}
	}
}

// WithClock overrides the time source, for tests
func WithClock(now func() time.Time) Option {
	return func(s *dispatchSvc) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a new in-memory dispatch service. Tables are loaded via
// ReplaceTable (typically by the sync coordinator) or created lazily by
// Register.
func New(opts ...Option) service.DispatchService {
	s := &dispatchSvc{
		tables:   make(map[string]*tableState),
		expected: make(map[string]string),
		sink:     &captureSink{inner: nodemap.NewSlogSink(nil)},
		now:      time.Now,
	}

	// Apply functional options
	for _, opt := range opts {
		opt(s)
	}

	// With a single configured table, unqualified operations target it
	if s.defaultTable == "" {
		if len(s.expected) == 1 {
			for name := range s.expected {
				s.defaultTable = name
			}
		} else {
			s.defaultTable = "default"
		}
	}

	return s
}

// newMap builds a dispatch map wired to the service sink and evaluator
func (s *dispatchSvc) newMap() *nodemap.Map {
	mapOpts := []nodemap.Option{nodemap.WithSink(s.sink)}
	if s.eval != nil {
		mapOpts = append(mapOpts, nodemap.WithConstraintEvaluator(s.eval))
	}
	return nodemap.New(mapOpts...)
}

// tableNameOrDefault resolves the target table of an operation
func (s *dispatchSvc) tableNameOrDefault(requested string) string {
	if requested != "" {
		return requested
	}
	return s.defaultTable
}

// CheckReadiness implements DispatchService.CheckReadiness
func (s *dispatchSvc) CheckReadiness(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for name := range s.expected {
		if _, ok := s.tables[name]; !ok {
			return fmt.Errorf("%w: table %q has not been loaded", service.ErrNotReady, name)
		}
	}
	return nil
}

// Resolve implements DispatchService.Resolve
func (s *dispatchSvc) Resolve(
	ctx context.Context,
	key string,
	opts ...service.Option[service.ResolveOptions],
) (*service.Resolution, error) {
	options := &service.ResolveOptions{}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	tableName := s.tableNameOrDefault(options.Table)

	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.tables[tableName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", service.ErrTableNotFound, tableName)
	}

	matched, err := state.dispatch.Select(dispatchContext(options.Node), key, lookupOptions(options.Canonical)...)
	if err != nil {
		return nil, err
	}
	if len(matched) == 0 {
		if len(state.dispatch.Matchers(key)) == 0 {
			return nil, fmt.Errorf("%w: %q in table %s", service.ErrKeyNotFound, key, tableName)
		}
		return nil, fmt.Errorf("%w: key %q in table %s", service.ErrNoMatch, key, tableName)
	}

	winner := matched[0]
	canonical, _ := winner.Canonical()

	slog.DebugContext(ctx, "Resolved dispatch key",
		"table", tableName,
		"key", key,
		"specificity", winner.Specificity(),
		"candidates", len(matched))

	return &service.Resolution{
		Table:       tableName,
		Key:         key,
		Value:       winner.Value(),
		Specificity: winner.Specificity(),
		Canonical:   canonical,
	}, nil
}

// Candidates implements DispatchService.Candidates
func (s *dispatchSvc) Candidates(
	_ context.Context,
	key string,
	opts ...service.Option[service.CandidatesOptions],
) ([]service.Candidate, error) {
	options := &service.CandidatesOptions{}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	tableName := s.tableNameOrDefault(options.Table)

	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.tables[tableName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", service.ErrTableNotFound, tableName)
	}

	matched, err := state.dispatch.Select(dispatchContext(options.Node), key, lookupOptions(options.Canonical)...)
	if err != nil {
		return nil, err
	}

	candidates := make([]service.Candidate, 0, len(matched))
	for _, matcher := range matched {
		canonical, _ := matcher.Canonical()
		candidates = append(candidates, service.Candidate{
			Value:       matcher.Value(),
			Specificity: matcher.Specificity(),
			Canonical:   canonical,
			Filters:     filterDimensions(matcher.Filters()),
		})
	}
	return candidates, nil
}

// Register implements DispatchService.Register
func (s *dispatchSvc) Register(
	ctx context.Context,
	opts ...service.Option[service.RegisterOptions],
) (*service.RegisterResult, error) {
	options := &service.RegisterOptions{}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	if options.Entry == nil {
		return nil, fmt.Errorf("entry is required")
	}
	entry := options.Entry
	tableName := s.tableNameOrDefault(options.Table)

	// Acquire write lock
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.tables[tableName]
	if !ok {
		// Runtime registrations may target tables no configured source
		// owns; create the table on first use
		state = &tableState{
			name:       tableName,
			sourceType: TableTypeAPI,
			dispatch:   s.newMap(),
			updatedAt:  s.now(),
		}
		s.tables[tableName] = state
	}

	captured := s.sink.begin()
	state.dispatch.Set(entry.Key, entry.Value, entry.Registration())
	s.sink.end()

	state.entryCount++
	state.updatedAt = s.now()

	slog.InfoContext(ctx, "Registered dispatch entry",
		"table", tableName,
		"key", entry.Key,
		"conflict", captured.conflict != nil)

	return &service.RegisterResult{
		Table:             tableName,
		Key:               entry.Key,
		Matchers:          len(state.dispatch.Matchers(entry.Key)),
		Conflict:          captured.conflict,
		DeprecatedFilters: captured.deprecated,
	}, nil
}

// DeleteCanonical implements DispatchService.DeleteCanonical
func (s *dispatchSvc) DeleteCanonical(
	ctx context.Context,
	key string,
	value any,
	opts ...service.Option[service.DeleteCanonicalOptions],
) (int, error) {
	options := &service.DeleteCanonicalOptions{}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return 0, err
		}
	}

	tableName := s.tableNameOrDefault(options.Table)

	// Acquire write lock
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.tables[tableName]
	if !ok {
		return 0, fmt.Errorf("%w: %s", service.ErrTableNotFound, tableName)
	}

	before := len(state.dispatch.Matchers(key))
	if before == 0 {
		return 0, fmt.Errorf("%w: %q in table %s", service.ErrKeyNotFound, key, tableName)
	}

	remaining, _ := state.dispatch.DeleteCanonical(key, value)
	removed := before - len(remaining)
	state.entryCount -= removed
	state.updatedAt = s.now()

	slog.InfoContext(ctx, "Deleted canonical registrations",
		"table", tableName,
		"key", key,
		"removed", removed,
		"remaining", len(remaining))

	return len(remaining), nil
}

// Keys implements DispatchService.Keys
func (s *dispatchSvc) Keys(
	_ context.Context,
	opts ...service.Option[service.KeysOptions],
) ([]string, error) {
	options := &service.KeysOptions{}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	tableName := s.tableNameOrDefault(options.Table)

	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.tables[tableName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", service.ErrTableNotFound, tableName)
	}

	return state.dispatch.Keys(), nil
}

// ListTables implements DispatchService.ListTables
func (s *dispatchSvc) ListTables(_ context.Context) ([]service.TableInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]service.TableInfo, 0, len(s.tables))
	for _, state := range s.tables {
		infos = append(infos, service.TableInfo{
			Name:       state.name,
			Type:       state.sourceType,
			Version:    state.version,
			KeyCount:   state.dispatch.Len(),
			EntryCount: state.entryCount,
			UpdatedAt:  state.updatedAt,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// ReplaceTable implements DispatchService.ReplaceTable
func (s *dispatchSvc) ReplaceTable(ctx context.Context, name string, doc *table.Document) (int, error) {
	if name == "" {
		return 0, fmt.Errorf("table name is required")
	}
	if doc == nil {
		return 0, fmt.Errorf("document is required")
	}

	// Acquire write lock. The replacement map is built under it because
	// applying the document reports advisories through the shared sink.
	s.mu.Lock()
	defer s.mu.Unlock()

	// Sources occasionally serve stale documents; flag downgrades but
	// apply them anyway so a rolled-back source wins
	if existing, ok := s.tables[name]; ok &&
		doc.Version != "" && existing.version != "" && doc.Version != existing.version &&
		!versions.IsNewerVersion(doc.Version, existing.version) {
		slog.WarnContext(ctx, "Replacing dispatch table with an older document version",
			"table", name,
			"current", existing.version,
			"incoming", doc.Version)
	}

	dispatch := s.newMap()
	applied := doc.Apply(dispatch)

	sourceType := s.expected[name]
	if sourceType == "" {
		if existing, ok := s.tables[name]; ok {
			sourceType = existing.sourceType
		} else {
			sourceType = TableTypeAPI
		}
	}

	s.tables[name] = &tableState{
		name:       name,
		sourceType: sourceType,
		dispatch:   dispatch,
		version:    doc.Version,
		entryCount: applied,
		updatedAt:  s.now(),
	}

	slog.InfoContext(ctx, "Replaced dispatch table",
		"table", name,
		"entries", applied,
		"version", doc.Version)

	return applied, nil
}

// dispatchContext converts an optional node into the lookup context.
// A nil node must become an untyped nil so it matches everything.
func dispatchContext(n *node.Node) any {
	if n == nil {
		return nil
	}
	return n
}

// lookupOptions builds the nodemap lookup options for a tri-state
// canonical request
func lookupOptions(canonical *bool) []nodemap.LookupOption {
	if canonical == nil {
		return nil
	}
	return []nodemap.LookupOption{nodemap.WithCanonical(*canonical)}
}

// filterDimensions flattens the non-empty filter dimensions of a
// matcher for API responses
func filterDimensions(f nodemap.Filters) map[string][]string {
	dims := make(map[string][]string, 4)
	if f.Platform != nil {
		dims[nodemap.AttrPlatform] = f.Platform
	}
	if f.PlatformVersion != nil {
		dims[nodemap.AttrPlatformVersion] = f.PlatformVersion
	}
	if f.PlatformFamily != nil {
		dims[nodemap.AttrPlatformFamily] = f.PlatformFamily
	}
	if f.OS != nil {
		dims[nodemap.AttrOS] = f.OS
	}
	if len(dims) == 0 {
		return nil
	}
	return dims
}

// captureSink forwards advisories to the configured sink and, while a
// Register call is in flight (under the service write lock), records
// them for the call's result
type captureSink struct {
	inner   nodemap.Sink
	pending *capturedAdvisories
}

type capturedAdvisories struct {
	conflict   *service.ConflictAdvisory
	deprecated []string
}

var _ nodemap.Sink = (*captureSink)(nil)

// begin starts capturing advisories. Caller must hold the service
// write lock.
func (c *captureSink) begin() *capturedAdvisories {
	c.pending = &capturedAdvisories{}
	return c.pending
}

// end stops capturing. Caller must hold the service write lock.
func (c *captureSink) end() {
	c.pending = nil
}

// DeprecatedFilter implements nodemap.Sink
func (c *captureSink) DeprecatedFilter(key, used, replacement string) {
	c.inner.DeprecatedFilter(key, used, replacement)
	if c.pending != nil {
		c.pending.deprecated = append(c.pending.deprecated, used)
	}
}

// OverrideConflict implements nodemap.Sink
func (c *captureSink) OverrideConflict(key string, newValue, existingValue any) {
	c.inner.OverrideConflict(key, newValue, existingValue)
	if c.pending != nil && c.pending.conflict == nil {
		c.pending.conflict = &service.ConflictAdvisory{
			NewValue:      newValue,
			ExistingValue: existingValue,
		}
	}
}
