// Package constraints evaluates version-range expressions against
// concrete version values. Expressions use semver constraint syntax
// (">= 18.04", "< 8, >= 7.1", "~7.2"); shortened versions such as
// "18.04" are accepted and padded the way semver tooling pads them.
package constraints

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Evaluator reports whether versions fall inside constraint
// expressions. The zero value is ready to use.
type Evaluator struct{}

// Matches reports whether version is included in the range described
// by constraint. Parse failures of either side are returned as errors
// rather than treated as misses.
func (Evaluator) Matches(constraint, version string) (bool, error) {
	rng, err := semver.NewConstraint(constraint)
	if err != nil {
		return false, fmt.Errorf("parse constraint %q: %w", constraint, err)
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return false, fmt.Errorf("parse version %q: %w", version, err)
	}
	return rng.Check(v), nil
}

// Default returns the evaluator used when a caller does not supply its
// own.
func Default() Evaluator {
	return Evaluator{}
}
