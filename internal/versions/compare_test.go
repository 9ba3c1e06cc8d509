package versions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNewerVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		candidate string
		current   string
		newer     bool
	}{
		{name: "newer major", candidate: "2.0.0", current: "1.0.0", newer: true},
		{name: "newer minor", candidate: "1.2.0", current: "1.1.0", newer: true},
		{name: "newer patch", candidate: "1.0.2", current: "1.0.1", newer: true},
		{name: "older", candidate: "1.0.0", current: "2.0.0", newer: false},
		{name: "equal", candidate: "1.0.0", current: "1.0.0", newer: false},
		{name: "release beats prerelease", candidate: "1.0.0", current: "1.0.0-alpha", newer: true},
		{name: "prerelease loses to release", candidate: "1.0.0-alpha", current: "1.0.0", newer: false},
		{name: "prerelease ordering", candidate: "1.0.0-beta", current: "1.0.0-alpha", newer: true},
		{name: "v prefix accepted", candidate: "v2.0.0", current: "v1.0.0", newer: true},
		{name: "bare numerics compare as semver", candidate: "10", current: "9", newer: true},

		// lexicographic fallback for free-form document versions
		{name: "free-form newer", candidate: "rev-b", current: "rev-a", newer: true},
		{name: "free-form older", candidate: "rev-a", current: "rev-b", newer: false},
		{name: "free-form equal", candidate: "draft-1", current: "draft-1", newer: false},
		{name: "mixed falls back", candidate: "not-semver", current: "1.0.0", newer: true},
		{name: "empty candidate", candidate: "", current: "1.0.0", newer: false},
		{name: "both empty", candidate: "", current: "", newer: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.newer, IsNewerVersion(tt.candidate, tt.current))
		})
	}
}
