package versions

import "github.com/Masterminds/semver/v3"

// IsNewerVersion reports whether candidate is strictly greater than
// current. Table documents carry free-form version strings, so the two
// are compared as semver when both parse and lexicographically
// otherwise. Bare numerics like "10" still parse as semver, so the
// lexicographic fallback only sees strings with no numeric ordering
// to preserve.
func IsNewerVersion(candidate, current string) bool {
	cv, errCandidate := semver.NewVersion(candidate)
	curr, errCurrent := semver.NewVersion(current)
	if errCandidate != nil || errCurrent != nil {
		return candidate > current
	}
	return cv.GreaterThan(curr)
}
