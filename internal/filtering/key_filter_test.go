package filtering

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultKeyFilter_ShouldInclude(t *testing.T) {
	t.Parallel()

	filter := NewDefaultKeyFilter()

	tests := []struct {
		name     string
		key      string
		include  []string
		exclude  []string
		expected bool
	}{
		{
			name:     "no filters includes everything",
			key:      "nginx/service",
			expected: true,
		},
		{
			name:     "include pattern matches",
			key:      "nginx/service",
			include:  []string{"nginx/*"},
			expected: true,
		},
		{
			name:     "include pattern matches across slashes",
			key:      "nginx/modules/http",
			include:  []string{"nginx/*"},
			expected: true,
		},
		{
			name:     "include pattern does not match",
			key:      "apache/service",
			include:  []string{"nginx/*"},
			expected: false,
		},
		{
			name:     "exclude pattern matches",
			key:      "nginx/experimental",
			exclude:  []string{"*/experimental"},
			expected: false,
		},
		{
			name:     "exclude takes precedence over include",
			key:      "nginx/experimental",
			include:  []string{"nginx/*"},
			exclude:  []string{"*/experimental"},
			expected: false,
		},
		{
			name:     "only exclude specified, no match",
			key:      "nginx/service",
			exclude:  []string{"*/experimental"},
			expected: true,
		},
		{
			name:     "question mark wildcard",
			key:      "db1",
			include:  []string{"db?"},
			expected: true,
		},
		{
			name:     "question mark does not match longer key",
			key:      "database",
			include:  []string{"db?"},
			expected: false,
		},
		{
			name:     "character class",
			key:      "server2",
			include:  []string{"server[1-3]"},
			expected: true,
		},
		{
			name:     "invalid include pattern excludes",
			key:      "anything",
			include:  []string{"[unclosed"},
			expected: false,
		},
		{
			name:     "invalid exclude pattern excludes",
			key:      "anything",
			exclude:  []string{"[unclosed"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, reason := filter.ShouldInclude(tt.key, tt.include, tt.exclude)
			assert.Equal(t, tt.expected, got, "reason: %s", reason)
			assert.NotEmpty(t, reason)
		})
	}
}
