package app

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validTableJSON = `{
	// Comments and trailing commas are tolerated in table documents.
	"version": "1",
	"entries": [
		{"key": "svc", "value": "default"},
		{"key": "svc", "value": "ubuntu-specific", "platform": "ubuntu",},
	],
}`

const validTableYAML = `version: "1"
entries:
  - key: svc
    value: default
  - key: svc
    value: ubuntu-specific
    platform: ubuntu
`

// invalidTableJSON misses the required key field on an entry.
const invalidTableJSON = `{"entries": [{"value": "orphan"}]}`

func newTestCmd() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	return cmd
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestValidateTableFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
		format  string
		wantErr bool
	}{
		{
			name:    "valid JSON document with comments",
			file:    "good.json",
			content: validTableJSON,
		},
		{
			name:    "valid YAML document",
			file:    "good.yaml",
			content: validTableYAML,
		},
		{
			name:    "schema violation",
			file:    "bad.json",
			content: invalidTableJSON,
			wantErr: true,
		},
		{
			name:    "explicit format overrides extension",
			file:    "table.txt",
			content: validTableYAML,
			format:  "yaml",
		},
		{
			name:    "wrong explicit format",
			file:    "mismatched.json",
			content: validTableYAML,
			format:  "json",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := writeFile(t, dir, tt.file, tt.content)

			err := validateTableFile(newTestCmd(), path, tt.format)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateTableFileMissing(t *testing.T) {
	t.Parallel()
	err := validateTableFile(newTestCmd(), filepath.Join(t.TempDir(), "absent.json"), "")
	assert.Error(t, err)
}

func TestRunValidateWithConfig(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	writeFile(t, dir, "base.json", validTableJSON)
	configPath := writeFile(t, dir, "config.yaml", `
tables:
  - name: base
    file:
      path: base.json
    syncPolicy:
      interval: 30m
`)

	cmd := newTestCmd()
	cmd.Flags().String("config", configPath, "")

	require.NoError(t, runValidate(cmd, nil))
}

func TestRunValidateWithBrokenReferencedTable(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	writeFile(t, dir, "base.json", invalidTableJSON)
	configPath := writeFile(t, dir, "config.yaml", `
tables:
  - name: base
    file:
      path: base.json
    syncPolicy:
      interval: 30m
`)

	cmd := newTestCmd()
	cmd.Flags().String("config", configPath, "")

	err := runValidate(cmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failure")
}

func TestRunValidateNothingToDo(t *testing.T) {
	t.Parallel()
	cmd := newTestCmd()
	cmd.Flags().String("config", "", "")

	err := runValidate(cmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to validate")
}
