package sources

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"

	"github.com/involucelate/chef/internal/config"
)

// fileSourceHandler handles table documents stored in local files
type fileSourceHandler struct {
	validator TableDataValidator
}

var _ SourceHandler = (*fileSourceHandler)(nil)

// NewFileSourceHandler creates a new file source handler
func NewFileSourceHandler() SourceHandler {
	return &fileSourceHandler{
		validator: NewTableDataValidator(),
	}
}

// Validate validates the file source configuration
func (*fileSourceHandler) Validate(tblCfg *config.TableConfig) error {
	if tblCfg == nil {
		return fmt.Errorf("table configuration cannot be nil")
	}

	if tblCfg.File == nil {
		return fmt.Errorf("file configuration is required")
	}

	if tblCfg.File.Path == "" {
		return fmt.Errorf("file path cannot be empty")
	}

	return nil
}

// FetchTable retrieves the table document from the local file
func (h *fileSourceHandler) FetchTable(ctx context.Context, tblCfg *config.TableConfig) (*FetchResult, error) {
	// Fetch file data
	data, hash, err := h.fetchFileData(ctx, tblCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch file data: %w", err)
	}

	// Validate and parse data
	format := resolveFormat(tblCfg)
	doc, err := h.validator.ValidateData(data, format)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	// Return result
	return NewFetchResult(doc, hash, format), nil
}

// fetchFileData reads the file and calculates its hash
func (h *fileSourceHandler) fetchFileData(_ context.Context, tblCfg *config.TableConfig) ([]byte, string, error) {
	// Validate table configuration
	if err := h.Validate(tblCfg); err != nil {
		return nil, "", fmt.Errorf("source validation failed: %w", err)
	}

	filePath := tblCfg.File.Path

	// Read the file
	//nolint:gosec // File path comes from user configuration, this is expected behavior
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("file not found: %s", filePath)
		}
		return nil, "", fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	// Calculate hash
	hash := fmt.Sprintf("%x", sha256.Sum256(data))

	return data, hash, nil
}

// CurrentHash returns the current hash of the file without performing a full parse
func (h *fileSourceHandler) CurrentHash(ctx context.Context, tblCfg *config.TableConfig) (string, error) {
	// For file sources, we read and hash the file
	// This is nearly as expensive as a full fetch, but maintains the interface
	_, hash, err := h.fetchFileData(ctx, tblCfg)
	if err != nil {
		return "", err
	}

	return hash, nil
}
