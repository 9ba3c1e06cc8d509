package nodemap

import "slices"

// Attribute names read from contexts during matching.
const (
	AttrOS              = "os"
	AttrPlatform        = "platform"
	AttrPlatformFamily  = "platform_family"
	AttrPlatformVersion = "platform_version"
)

// Legacy spellings accepted as synonyms for the platform filter.
const (
	legacyOnPlatform  = "on_platform"
	legacyOnPlatforms = "on_platforms"
)

// Filters constrains when a registration applies. Every field is
// optional; a nil or empty list leaves that dimension unconstrained.
//
// PlatformVersion entries are version-range expressions handed to the
// map's constraint evaluator. The remaining fields hold tokens,
// optionally negated with a "!" prefix; the Wildcard token matches any
// value. A negated token excludes its value even when the same value
// is also listed un-negated.
type Filters struct {
	Platform        []string
	PlatformVersion []string
	PlatformFamily  []string
	OS              []string

	// OnPlatform is accepted as a synonym for Platform and reported
	// through the map's sink when used.
	//
	// Deprecated: use Platform.
	OnPlatform []string

	// OnPlatforms is accepted as a synonym for Platform and reported
	// through the map's sink when used.
	//
	// Deprecated: use Platform.
	OnPlatforms []string
}

// filterSet is the normalized parse-time form of Filters. A nil slice
// means the attribute was not supplied; supplied-but-empty lists
// normalize to nil so they are never stored present-but-empty.
type filterSet struct {
	os              []Token
	platformFamily  []Token
	platform        []Token
	platformVersion []string
}

// normalize folds the legacy platform spellings into platform,
// reporting each use through sink, and parses the token lists.
func (f Filters) normalize(key string, sink Sink) filterSet {
	platform := slices.Clone(f.Platform)
	if len(f.OnPlatform) > 0 {
		sink.DeprecatedFilter(key, legacyOnPlatform, AttrPlatform)
		platform = append(platform, f.OnPlatform...)
	}
	if len(f.OnPlatforms) > 0 {
		sink.DeprecatedFilter(key, legacyOnPlatforms, AttrPlatform)
		platform = append(platform, f.OnPlatforms...)
	}

	fs := filterSet{
		os:             parseTokens(f.OS),
		platformFamily: parseTokens(f.PlatformFamily),
		platform:       parseTokens(platform),
	}
	if len(f.PlatformVersion) > 0 {
		fs.platformVersion = slices.Clone(f.PlatformVersion)
	}
	return fs
}

func (a filterSet) equal(b filterSet) bool {
	return slices.Equal(a.os, b.os) &&
		slices.Equal(a.platformFamily, b.platformFamily) &&
		slices.Equal(a.platform, b.platform) &&
		slices.Equal(a.platformVersion, b.platformVersion)
}

// public reconstructs the exported filter form. Legacy spellings are
// already folded into Platform by this point.
func (a filterSet) public() Filters {
	return Filters{
		Platform:        rawTokens(a.platform),
		PlatformVersion: slices.Clone(a.platformVersion),
		PlatformFamily:  rawTokens(a.platformFamily),
		OS:              rawTokens(a.os),
	}
}
