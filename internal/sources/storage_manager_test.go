package sources

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/involucelate/chef/internal/table"
)

func boolPtr(b bool) *bool {
	return &b
}

func TestFileStorageManager_StoreAndGet(t *testing.T) {
	t.Parallel()

	manager := NewFileStorageManager(t.TempDir())

	doc := &table.Document{
		Version: "1",
		Entries: []table.Entry{
			{Key: "service", Value: "nginx", Platform: table.StringOrSlice{"debian"}},
			{Key: "service", Value: "httpd", Platform: table.StringOrSlice{"redhat"}, Canonical: boolPtr(true)},
		},
	}

	require.NoError(t, manager.Store(t.Context(), "base", doc))

	got, err := manager.Get(t.Context(), "base")
	require.NoError(t, err)
	require.Len(t, got.Entries, 2)
	assert.Equal(t, "1", got.Version)
	assert.Equal(t, "service", got.Entries[0].Key)
	assert.Equal(t, table.StringOrSlice{"debian"}, got.Entries[0].Platform)
	require.NotNil(t, got.Entries[1].Canonical)
	assert.True(t, *got.Entries[1].Canonical)
}

func TestFileStorageManager_StoreOverwrites(t *testing.T) {
	t.Parallel()

	manager := NewFileStorageManager(t.TempDir())

	first := &table.Document{Entries: []table.Entry{{Key: "a", Value: float64(1)}}}
	second := &table.Document{Entries: []table.Entry{
		{Key: "a", Value: float64(2)},
		{Key: "b", Value: float64(3)},
	}}

	require.NoError(t, manager.Store(t.Context(), "base", first))
	require.NoError(t, manager.Store(t.Context(), "base", second))

	got, err := manager.Get(t.Context(), "base")
	require.NoError(t, err)
	require.Len(t, got.Entries, 2)
	assert.Equal(t, float64(2), got.Entries[0].Value)
}

func TestFileStorageManager_GetMissing(t *testing.T) {
	t.Parallel()

	manager := NewFileStorageManager(t.TempDir())

	_, err := manager.Get(t.Context(), "absent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table snapshot not found")
}

func TestFileStorageManager_Delete(t *testing.T) {
	t.Parallel()

	basePath := t.TempDir()
	manager := NewFileStorageManager(basePath)

	doc := &table.Document{Entries: []table.Entry{{Key: "a", Value: float64(1)}}}
	require.NoError(t, manager.Store(t.Context(), "base", doc))

	require.NoError(t, manager.Delete(t.Context(), "base"))
	_, err := manager.Get(t.Context(), "base")
	require.Error(t, err)

	// Deleting a table that was never stored is not an error
	require.NoError(t, manager.Delete(t.Context(), "never-stored"))
}

func TestFileStorageManager_RejectsBadTableNames(t *testing.T) {
	t.Parallel()

	manager := NewFileStorageManager(t.TempDir())
	doc := &table.Document{Entries: []table.Entry{{Key: "a", Value: float64(1)}}}

	for _, name := range []string{"", "../escape", "nested/name"} {
		require.Error(t, manager.Store(t.Context(), name, doc), "name %q must be rejected", name)
	}
}

func TestFileStorageManager_StoreLeavesNoTempFiles(t *testing.T) {
	t.Parallel()

	basePath := t.TempDir()
	manager := NewFileStorageManager(basePath)

	doc := &table.Document{Entries: []table.Entry{{Key: "a", Value: float64(1)}}}
	require.NoError(t, manager.Store(t.Context(), "base", doc))

	entries, err := os.ReadDir(basePath)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.Equal(t, ".json", filepath.Ext(entry.Name()))
	}
}
