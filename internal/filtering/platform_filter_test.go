package filtering

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPlatformFilter_ShouldInclude(t *testing.T) {
	t.Parallel()

	filter := NewDefaultPlatformFilter()

	tests := []struct {
		name      string
		platforms []string
		include   []string
		exclude   []string
		expected  bool
	}{
		{
			name:      "no filters includes everything",
			platforms: []string{"debian"},
			expected:  true,
		},
		{
			name:      "entry without platform tokens always kept",
			platforms: nil,
			include:   []string{"debian"},
			exclude:   []string{"windows"},
			expected:  true,
		},
		{
			name:      "include token matches",
			platforms: []string{"debian", "ubuntu"},
			include:   []string{"debian"},
			expected:  true,
		},
		{
			name:      "include token does not match",
			platforms: []string{"windows"},
			include:   []string{"debian", "ubuntu"},
			expected:  false,
		},
		{
			name:      "exclude token matches",
			platforms: []string{"windows"},
			exclude:   []string{"windows"},
			expected:  false,
		},
		{
			name:      "exclude takes precedence over include",
			platforms: []string{"debian", "windows"},
			include:   []string{"debian"},
			exclude:   []string{"windows"},
			expected:  false,
		},
		{
			name:      "only exclude specified, no match",
			platforms: []string{"debian"},
			exclude:   []string{"windows"},
			expected:  true,
		},
		{
			name:      "exact matching only",
			platforms: []string{"debian"},
			include:   []string{"deb*"},
			expected:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, reason := filter.ShouldInclude(tt.platforms, tt.include, tt.exclude)
			assert.Equal(t, tt.expected, got, "reason: %s", reason)
			assert.NotEmpty(t, reason)
		})
	}
}
