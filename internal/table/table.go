// Package table defines the dispatch table document format: the
// serialized registration sets that sources fetch and the service
// replays into a dispatch map.
package table

import (
	"encoding/json"
	"fmt"

	"github.com/involucelate/chef/pkg/nodemap"
)

// Document is one dispatch table: an ordered list of registrations.
// Document order is insertion order, which matters for the
// newest-first tie-break between equally specific entries.
type Document struct {
	// Version labels the document revision; informational.
	Version string `json:"version,omitempty"`

	// Entries are replayed in order.
	Entries []Entry `json:"entries"`
}

// Entry is one registration row. Filter fields accept either a bare
// string or a list of strings.
type Entry struct {
	Key   string `json:"key"`
	Value any    `json:"value"`

	Platform        StringOrSlice `json:"platform,omitempty"`
	PlatformVersion StringOrSlice `json:"platform_version,omitempty"`
	PlatformFamily  StringOrSlice `json:"platform_family,omitempty"`
	OS              StringOrSlice `json:"os,omitempty"`

	// OnPlatform is accepted for older documents; replaying it raises
	// a deprecation advisory.
	//
	// Deprecated: use Platform.
	OnPlatform StringOrSlice `json:"on_platform,omitempty"`

	// OnPlatforms is accepted for older documents; replaying it raises
	// a deprecation advisory.
	//
	// Deprecated: use Platform.
	OnPlatforms StringOrSlice `json:"on_platforms,omitempty"`

	Canonical *bool `json:"canonical,omitempty"`
	Override  bool  `json:"override,omitempty"`
}

// Filters converts the entry's filter columns to the registry form.
// Legacy spellings are carried through so the map's sink sees them.
func (e *Entry) Filters() nodemap.Filters {
	return nodemap.Filters{
		Platform:        e.Platform,
		PlatformVersion: e.PlatformVersion,
		PlatformFamily:  e.PlatformFamily,
		OS:              e.OS,
		OnPlatform:      e.OnPlatform,
		OnPlatforms:     e.OnPlatforms,
	}
}

// Registration converts the entry to the Set configuration record.
// Documents cannot carry predicates; registrations made through the
// API or in code can.
func (e *Entry) Registration() nodemap.Registration {
	return nodemap.Registration{
		Filters:   e.Filters(),
		Canonical: e.Canonical,
		Override:  e.Override,
	}
}

// Apply replays the document's entries into m in document order and
// returns the number of entries applied.
func (d *Document) Apply(m *nodemap.Map) int {
	for _, e := range d.Entries {
		m.Set(e.Key, e.Value, e.Registration())
	}
	return len(d.Entries)
}

// StringOrSlice unmarshals either a bare JSON string or a list of
// strings into a list.
type StringOrSlice []string

// UnmarshalJSON implements json.Unmarshaler.
func (s *StringOrSlice) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		*s = StringOrSlice{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("expected string or list of strings: %w", err)
	}
	*s = StringOrSlice(list)
	return nil
}

// MarshalJSON implements json.Marshaler; single-element lists collapse
// back to a bare string.
func (s StringOrSlice) MarshalJSON() ([]byte, error) {
	if len(s) == 1 {
		return json.Marshal(s[0])
	}
	return json.Marshal([]string(s))
}
