package nodemap

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// genRegistration draws a registration with a random filter shape. The
// value is assigned by the caller so insertion order stays traceable.
func genRegistration(t *rapid.T) Registration {
	var reg Registration

	tokens := func(label string) []string {
		return rapid.SliceOfN(
			rapid.SampledFrom([]string{"ubuntu", "debian", "centos", "!windows", Wildcard}),
			1, 3,
		).Draw(t, label)
	}

	switch rapid.IntRange(0, 4).Draw(t, "tier") {
	case 1:
		reg.Filters.OS = tokens("os")
	case 2:
		reg.Filters.PlatformFamily = tokens("family")
	case 3:
		reg.Filters.Platform = tokens("platform")
	case 4:
		reg.Filters.PlatformVersion = rapid.SliceOfN(
			rapid.SampledFrom([]string{">= 1.0.0", "< 9", ">= 18.04"}),
			1, 2,
		).Draw(t, "version")
	}

	if rapid.Bool().Draw(t, "predicate") {
		reg.Predicate = PredicateFunc(func(Context) bool { return true })
	}
	reg.Override = true
	return reg
}

func TestMapProperties_SpecificityDescending(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		m := New(WithSink(NopSink{}))
		n := rapid.IntRange(1, 20).Draw(t, "n")
		for i := 0; i < n; i++ {
			m.Set("key", i, genRegistration(t))
		}

		matchers := m.Matchers("key")
		require.Len(t, matchers, n)
		for i := 1; i < len(matchers); i++ {
			require.GreaterOrEqual(t,
				matchers[i-1].Specificity(), matchers[i].Specificity(),
				"stored order must be non-increasing in specificity")
		}
	})
}

func TestMapProperties_NewestFirstWithinTier(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		m := New(WithSink(NopSink{}))
		n := rapid.IntRange(2, 20).Draw(t, "n")
		for i := 0; i < n; i++ {
			m.Set("key", i, genRegistration(t))
		}

		// Values record insertion sequence; within one specificity
		// score, later insertions must precede earlier ones.
		matchers := m.Matchers("key")
		for i := 0; i < len(matchers); i++ {
			for j := i + 1; j < len(matchers); j++ {
				if matchers[i].Specificity() != matchers[j].Specificity() {
					continue
				}
				require.Greater(t,
					matchers[i].Value().(int), matchers[j].Value().(int),
					"equal specificity must order newest first")
			}
		}
	})
}

func TestMapProperties_GetIsHeadOfList(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		m := New(WithSink(NopSink{}))
		n := rapid.IntRange(0, 15).Draw(t, "n")
		for i := 0; i < n; i++ {
			m.Set("key", i, genRegistration(t))
		}

		values, err := m.List(nil, "key")
		require.NoError(t, err)

		got, found, err := m.Get(nil, "key")
		require.NoError(t, err)

		if len(values) == 0 {
			require.False(t, found)
			return
		}
		require.True(t, found)
		require.Equal(t, values[0], got)
	})
}

func TestMapProperties_StrictlyIncreasingSpecificityReverses(t *testing.T) {
	t.Parallel()

	// Registering in strictly increasing specificity yields the exact
	// reverse order on read, for every prefix length.
	regs := []Registration{
		{},
		{Predicate: PredicateFunc(func(Context) bool { return true })},
		{Filters: Filters{OS: []string{"linux"}}},
		{Filters: Filters{OS: []string{"linux"}}, Predicate: PredicateFunc(func(Context) bool { return true })},
		{Filters: Filters{PlatformFamily: []string{"debian"}}},
		{Filters: Filters{Platform: []string{"ubuntu"}}},
		{Filters: Filters{PlatformVersion: []string{">= 1"}}},
	}

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, len(regs)).Draw(t, "n")
		m := New(WithSink(NopSink{}))
		for i := 0; i < n; i++ {
			m.Set("key", i, regs[i])
		}

		values, err := m.List(nil, "key")
		require.NoError(t, err)
		require.Len(t, values, n)
		for i, v := range values {
			require.Equal(t, n-1-i, v.(int))
		}
	})
}
