package filtering

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/involucelate/chef/internal/config"
	"github.com/involucelate/chef/internal/table"
)

func testDocument() *table.Document {
	return &table.Document{
		Version: "1",
		Entries: []table.Entry{
			{Key: "nginx/service", Value: "nginx"},
			{Key: "nginx/service", Value: "nginx-custom", Platform: table.StringOrSlice{"debian", "ubuntu"}},
			{Key: "nginx/experimental", Value: true, Platform: table.StringOrSlice{"arch"}},
			{Key: "apache/service", Value: "httpd", Platform: table.StringOrSlice{"redhat"}},
			{Key: "apache/service", Value: "apache2", OnPlatform: table.StringOrSlice{"windows"}},
		},
	}
}

func entryKeys(doc *table.Document) []string {
	keys := make([]string, 0, len(doc.Entries))
	for _, e := range doc.Entries {
		keys = append(keys, e.Key)
	}
	return keys
}

func TestDefaultFilterService_ApplyFilters_NoFilter(t *testing.T) {
	t.Parallel()

	service := NewDefaultFilterService()
	doc := testDocument()

	result, err := service.ApplyFilters(context.Background(), doc, nil)
	require.NoError(t, err)
	assert.Equal(t, doc, result, "no filter should return original document")
}

func TestDefaultFilterService_ApplyFilters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		filter   *config.FilterConfig
		expected []string
	}{
		{
			name:   "empty filter keeps everything",
			filter: &config.FilterConfig{},
			expected: []string{
				"nginx/service", "nginx/service", "nginx/experimental",
				"apache/service", "apache/service",
			},
		},
		{
			name: "key include",
			filter: &config.FilterConfig{
				Keys: &config.FilterCriteria{Include: []string{"nginx/*"}},
			},
			expected: []string{"nginx/service", "nginx/service", "nginx/experimental"},
		},
		{
			name: "key exclude",
			filter: &config.FilterConfig{
				Keys: &config.FilterCriteria{Exclude: []string{"*/experimental"}},
			},
			expected: []string{
				"nginx/service", "nginx/service",
				"apache/service", "apache/service",
			},
		},
		{
			name: "key exclude takes precedence over include",
			filter: &config.FilterConfig{
				Keys: &config.FilterCriteria{
					Include: []string{"nginx/*"},
					Exclude: []string{"*/experimental"},
				},
			},
			expected: []string{"nginx/service", "nginx/service"},
		},
		{
			name: "platform exclude drops legacy spellings too",
			filter: &config.FilterConfig{
				Platforms: &config.FilterCriteria{Exclude: []string{"windows"}},
			},
			expected: []string{
				"nginx/service", "nginx/service", "nginx/experimental",
				"apache/service",
			},
		},
		{
			name: "platform include keeps universal entries",
			filter: &config.FilterConfig{
				Platforms: &config.FilterCriteria{Include: []string{"debian"}},
			},
			// The unfiltered nginx entry is universal and survives any
			// include list; both apache entries carry platform tokens
			// (redhat, and windows via the legacy spelling) so neither
			// matches debian.
			expected: []string{"nginx/service", "nginx/service"},
		},
		{
			name: "key and platform filters combine with AND",
			filter: &config.FilterConfig{
				Keys:      &config.FilterCriteria{Include: []string{"apache/*"}},
				Platforms: &config.FilterCriteria{Exclude: []string{"windows"}},
			},
			expected: []string{"apache/service"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			service := NewDefaultFilterService()
			doc := testDocument()

			result, err := service.ApplyFilters(context.Background(), doc, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, entryKeys(result))
			assert.Equal(t, doc.Version, result.Version)
		})
	}
}

func TestDefaultFilterService_PreservesEntryOrder(t *testing.T) {
	t.Parallel()

	service := NewDefaultFilterService()
	doc := testDocument()

	result, err := service.ApplyFilters(context.Background(), doc, &config.FilterConfig{
		Keys: &config.FilterCriteria{Exclude: []string{"*/experimental"}},
	})
	require.NoError(t, err)

	// Surviving entries keep their relative document order.
	require.Len(t, result.Entries, 4)
	assert.Equal(t, "nginx", result.Entries[0].Value)
	assert.Equal(t, "nginx-custom", result.Entries[1].Value)
	assert.Equal(t, "httpd", result.Entries[2].Value)
	assert.Equal(t, "apache2", result.Entries[3].Value)
}
