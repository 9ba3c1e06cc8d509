package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/involucelate/chef/internal/table"
)

//go:generate mockgen -destination=mocks/mock_storage_manager.go -package=mocks -source=storage_manager.go StorageManager

// StorageManager defines the interface for persisting the last good
// table document per table, so a restarted server can warm-start from
// the most recent sync instead of waiting for the next fetch.
type StorageManager interface {
	// Store saves a table document to persistent storage
	Store(ctx context.Context, tableName string, doc *table.Document) error

	// Get retrieves and parses a table document from persistent storage
	Get(ctx context.Context, tableName string) (*table.Document, error)

	// Delete removes a table document from persistent storage
	Delete(ctx context.Context, tableName string) error
}

// fileStorageManager implements StorageManager using local filesystem
type fileStorageManager struct {
	basePath string
}

var _ StorageManager = (*fileStorageManager)(nil)

// NewFileStorageManager creates a new file-based storage manager
func NewFileStorageManager(basePath string) StorageManager {
	return &fileStorageManager{
		basePath: basePath,
	}
}

// documentPath builds the snapshot path for a table, rejecting names
// that would escape the base directory.
func (f *fileStorageManager) documentPath(tableName string) (string, error) {
	if tableName == "" || tableName != filepath.Base(tableName) {
		return "", fmt.Errorf("invalid table name: %q", tableName)
	}
	return filepath.Join(f.basePath, tableName+".json"), nil
}

// Store saves the table document to a JSON file
func (f *fileStorageManager) Store(_ context.Context, tableName string, doc *table.Document) error {
	filePath, err := f.documentPath(tableName)
	if err != nil {
		return err
	}

	// Create base directory if it doesn't exist
	if err := os.MkdirAll(f.basePath, 0750); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}

	// Marshal the document to JSON with pretty printing for readability
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal table document: %w", err)
	}

	// Write to temporary file first for atomic operation
	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary table file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tempPath, filePath); err != nil {
		// Clean up temp file on error
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename table file: %w", err)
	}

	return nil
}

// Get retrieves and parses a table document from the JSON file
func (f *fileStorageManager) Get(_ context.Context, tableName string) (*table.Document, error) {
	filePath, err := f.documentPath(tableName)
	if err != nil {
		return nil, err
	}

	// Read file
	//nolint:gosec // File path is internally managed by StorageManager, not user input
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("table snapshot not found: %w", err)
		}
		return nil, fmt.Errorf("failed to read table file: %w", err)
	}

	// Unmarshal JSON into a table document
	var doc table.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal table document: %w", err)
	}

	return &doc, nil
}

// Delete removes the table document file
func (f *fileStorageManager) Delete(_ context.Context, tableName string) error {
	filePath, err := f.documentPath(tableName)
	if err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, nothing to delete
			return nil
		}
		return fmt.Errorf("failed to delete table file: %w", err)
	}

	return nil
}
