package nodemap

import "reflect"

// Matcher is one registration under a key: the parsed filters, an
// optional predicate, the payload value and the canonical flag.
// Matchers are created by Map.Set and never mutated afterwards.
type Matcher struct {
	filters   filterSet
	predicate Predicate
	value     any
	canonical *bool
}

// Value returns the registered payload.
func (m *Matcher) Value() any { return m.value }

// Predicate returns the registration's guard, or nil when the
// registration is unguarded.
func (m *Matcher) Predicate() Predicate { return m.predicate }

// Canonical returns the canonical flag and whether it was set at all.
func (m *Matcher) Canonical() (value, ok bool) {
	if m.canonical == nil {
		return false, false
	}
	return *m.canonical, true
}

// Filters returns the matcher's filters in their exported form, with
// legacy spellings folded into Platform and negated tokens carrying
// their "!" prefix.
func (m *Matcher) Filters() Filters {
	return m.filters.public()
}

// Specificity ranks a matcher; more specific matchers sort first
// within a key. Exactly one base tier applies, platform_version being
// the strongest signal and a bare registration the weakest, and a
// predicate adds one point on top of the tier.
func (m *Matcher) Specificity() int {
	score := 0
	switch {
	case m.filters.platformVersion != nil:
		score = 8
	case m.filters.platform != nil:
		score = 6
	case m.filters.platformFamily != nil:
		score = 4
	case m.filters.os != nil:
		score = 2
	}
	if m.predicate != nil {
		score++
	}
	return score
}

// canonicalMatches applies the tri-state canonical query: a nil
// request never filters, otherwise the matcher's flag truthiness (an
// unset flag counts as false) must equal the requested value exactly.
func (m *Matcher) canonicalMatches(requested *bool) bool {
	if requested == nil {
		return true
	}
	truthy := m.canonical != nil && *m.canonical
	return truthy == *requested
}

// valuesEqual compares two opaque payloads. Values are uninterpreted
// by the map, so deep equality is the only meaningful comparison.
func valuesEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// asList views a payload as a list for canonical deletion: slices and
// arrays expand element-wise, anything else compares as a
// single-element list, and nil is empty.
func asList(v any) []any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out
	}
	return []any{v}
}

func listsEqual(a, b any) bool {
	la, lb := asList(a), asList(b)
	if len(la) != len(lb) {
		return false
	}
	for i := range la {
		if !valuesEqual(la[i], lb[i]) {
			return false
		}
	}
	return true
}
