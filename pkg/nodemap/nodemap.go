package nodemap

import (
	"fmt"
	"slices"

	"github.com/involucelate/chef/pkg/constraints"
)

// ConstraintEvaluator decides whether a version value is included in a
// version-range expression. Evaluation failures are surfaced unchanged
// by Get and List.
type ConstraintEvaluator interface {
	Matches(constraint, version string) (bool, error)
}

// Map is a priority-ranked, filter-dispatched registry of values.
//
// Map is not safe for concurrent mutation: Set is a multi-step
// scan-then-insert. Build it sequentially, then read it from as many
// goroutines as needed, or wrap it in explicit synchronization.
type Map struct {
	entries map[string][]*Matcher
	eval    ConstraintEvaluator
	sink    Sink
}

// Option configures a Map.
type Option func(*Map)

// WithSink routes advisory events to s instead of the default slog
// sink.
func WithSink(s Sink) Option {
	return func(m *Map) {
		if s != nil {
			m.sink = s
		}
	}
}

// WithConstraintEvaluator replaces the evaluator used for
// platform_version filters.
func WithConstraintEvaluator(eval ConstraintEvaluator) Option {
	return func(m *Map) {
		if eval != nil {
			m.eval = eval
		}
	}
}

// New returns an empty Map. Unless overridden, advisories log through
// slog and platform_version filters evaluate as semver range
// expressions.
func New(opts ...Option) *Map {
	m := &Map{
		entries: make(map[string][]*Matcher),
		eval:    constraints.Default(),
		sink:    NewSlogSink(nil),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registration configures one Set call. The zero value registers an
// unfiltered, always-matching entry.
type Registration struct {
	// Filters restricts the contexts the registration applies to.
	Filters Filters

	// Predicate optionally guards the registration beyond its filters.
	Predicate Predicate

	// Canonical marks the authoritative registration for a key. Nil
	// leaves the flag unset, which is distinct from false when lookups
	// filter on it.
	Canonical *bool

	// Override acknowledges that an equivalent registration with a
	// different value may already exist, silencing the conflict
	// advisory.
	Override bool
}

// Set registers value under key and returns the map for chaining.
//
// The new matcher is inserted immediately before the first existing
// matcher whose specificity does not exceed its own, and appended when
// every existing matcher ranks higher; equal-specificity registrations
// therefore resolve newest first. When that first encountered matcher
// carries identical filters and predicate presence but a different
// value, and Override is unset, the conflict is reported to the sink
// and the insertion still proceeds.
func (m *Map) Set(key string, value any, reg Registration) *Map {
	matcher := &Matcher{
		filters:   reg.Filters.normalize(key, m.sink),
		predicate: reg.Predicate,
		value:     value,
		canonical: reg.Canonical,
	}

	list := m.entries[key]
	for i, existing := range list {
		if existing.Specificity() > matcher.Specificity() {
			continue
		}
		if !reg.Override &&
			existing.filters.equal(matcher.filters) &&
			(existing.predicate == nil) == (matcher.predicate == nil) &&
			!valuesEqual(existing.value, matcher.value) {
			m.sink.OverrideConflict(key, matcher.value, existing.value)
		}
		m.entries[key] = slices.Insert(list, i, matcher)
		return m
	}
	m.entries[key] = append(list, matcher)
	return m
}

// lookup carries the optional query refinements shared by Get and
// List.
type lookup struct {
	canonical *bool
}

// LookupOption refines a Get or List query.
type LookupOption func(*lookup)

// WithCanonical restricts results to matchers whose canonical flag
// truthiness equals canonical (an unset flag counts as false). Without
// this option the flag is ignored.
func WithCanonical(canonical bool) LookupOption {
	return func(q *lookup) {
		c := canonical
		q.canonical = &c
	}
}

func buildLookup(opts []LookupOption) lookup {
	var q lookup
	for _, opt := range opts {
		opt(&q)
	}
	return q
}

// Get returns the highest-priority value registered under key whose
// filters match ctx, and whether one was found. ctx may be nil, which
// matches every registration, or any value implementing Context;
// anything else fails with ErrInvalidContext. Constraint evaluator
// failures propagate.
func (m *Map) Get(ctx any, key string, opts ...LookupOption) (any, bool, error) {
	c, err := conform(ctx)
	if err != nil {
		return nil, false, err
	}
	q := buildLookup(opts)
	for _, matcher := range m.entries[key] {
		ok, err := m.matches(c, matcher)
		if err != nil {
			return nil, false, err
		}
		if ok && matcher.canonicalMatches(q.canonical) {
			return matcher.value, true, nil
		}
	}
	return nil, false, nil
}

// List returns every value registered under key whose filters match
// ctx, highest priority first. A missing key or an all-miss query
// yields an empty result, not an error. The context contract is the
// same as Get's.
func (m *Map) List(ctx any, key string, opts ...LookupOption) ([]any, error) {
	matched, err := m.Select(ctx, key, opts...)
	if err != nil {
		return nil, err
	}
	var values []any
	for _, matcher := range matched {
		values = append(values, matcher.value)
	}
	return values, nil
}

// Select is List with the matcher metadata retained: every matcher
// registered under key whose filters match ctx, highest priority
// first. The returned slice is freshly allocated; the matchers are
// shared and must not be mutated.
func (m *Map) Select(ctx any, key string, opts ...LookupOption) ([]*Matcher, error) {
	c, err := conform(ctx)
	if err != nil {
		return nil, err
	}
	q := buildLookup(opts)
	var matched []*Matcher
	for _, matcher := range m.entries[key] {
		ok, err := m.matches(c, matcher)
		if err != nil {
			return nil, err
		}
		if ok && matcher.canonicalMatches(q.canonical) {
			matched = append(matched, matcher)
		}
	}
	return matched, nil
}

// DeleteCanonical removes every matcher under key whose canonical flag
// is true and whose value equals value, comparing scalar values as
// single-element lists. It returns the matchers that remain and
// whether the key still exists; removing the last matcher removes the
// key itself, and a key that was never registered reports absent.
//
// This is internal plumbing for table reloads; its signature and
// behavior may change.
func (m *Map) DeleteCanonical(key string, value any) ([]*Matcher, bool) {
	list, exists := m.entries[key]
	if !exists {
		return nil, false
	}
	kept := make([]*Matcher, 0, len(list))
	for _, matcher := range list {
		if matcher.canonical != nil && *matcher.canonical && listsEqual(matcher.value, value) {
			continue
		}
		kept = append(kept, matcher)
	}
	if len(kept) == 0 {
		delete(m.entries, key)
		return nil, false
	}
	m.entries[key] = kept
	return kept, true
}

// Keys returns every registered key in sorted order.
func (m *Map) Keys() []string {
	keys := make([]string, 0, len(m.entries))
	for key := range m.entries {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// Matchers returns the stored matcher sequence for key in priority
// order. The slice is a copy; the matchers are shared and must not be
// mutated.
func (m *Map) Matchers(key string) []*Matcher {
	return slices.Clone(m.entries[key])
}

// Len returns the number of registered keys.
func (m *Map) Len() int {
	return len(m.entries)
}

// matches reports whether ctx satisfies every filter dimension and the
// predicate of matcher. A nil ctx matches unconditionally.
func (m *Map) matches(ctx Context, matcher *Matcher) (bool, error) {
	if ctx == nil {
		return true, nil
	}
	for _, dim := range [...]struct {
		attr   string
		tokens []Token
	}{
		{AttrOS, matcher.filters.os},
		{AttrPlatformFamily, matcher.filters.platformFamily},
		{AttrPlatform, matcher.filters.platform},
	} {
		if dim.tokens == nil {
			continue
		}
		got, _ := ctx.Attribute(dim.attr)
		if !matchTokens(dim.tokens, got) {
			return false, nil
		}
	}
	if len(matcher.filters.platformVersion) > 0 {
		got, _ := ctx.Attribute(AttrPlatformVersion)
		ok, err := m.versionMatches(matcher.filters.platformVersion, got)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	if matcher.predicate != nil && !matcher.predicate.Evaluate(ctx) {
		return false, nil
	}
	return true, nil
}

// versionMatches passes when the version is included in at least one
// of the range expressions.
func (m *Map) versionMatches(exprs []string, version string) (bool, error) {
	for _, expr := range exprs {
		ok, err := m.eval.Matches(expr, version)
		if err != nil {
			return false, fmt.Errorf("platform_version filter %q: %w", expr, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
