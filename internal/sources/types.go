package sources

import (
	"context"
	"fmt"

	"github.com/involucelate/chef/internal/config"
	"github.com/involucelate/chef/internal/table"
)

// TableDataValidator is an interface for validating raw table document data
type TableDataValidator interface {
	// ValidateData validates raw data and returns a parsed table document
	ValidateData(data []byte, format string) (*table.Document, error)
}

//go:generate mockgen -destination=mocks/mock_source_handler.go -package=mocks -source=types.go SourceHandler,SourceHandlerFactory

// SourceHandler is an interface with methods to fetch table documents from external data sources
type SourceHandler interface {
	// FetchTable retrieves the table document from the source and returns the result
	FetchTable(ctx context.Context, tblCfg *config.TableConfig) (*FetchResult, error)

	// Validate validates the source configuration
	Validate(tblCfg *config.TableConfig) error

	// CurrentHash returns the current hash of the source data without parsing it
	CurrentHash(ctx context.Context, tblCfg *config.TableConfig) (string, error)
}

// FetchResult contains the result of a fetch operation
type FetchResult struct {
	// Document is the parsed and schema-validated table document
	Document *table.Document

	// Hash is the SHA256 hash of the serialized data for change detection
	Hash string

	// EntryCount is the number of entries found in the table document
	EntryCount int

	// Format indicates the original format of the source data
	Format string
}

// NewFetchResult creates a new FetchResult from a table document and pre-calculated hash
// The hash should be calculated by the source handler to ensure consistency with CurrentHash
func NewFetchResult(doc *table.Document, hash string, format string) *FetchResult {
	entryCount := 0
	if doc != nil {
		entryCount = len(doc.Entries)
	}

	return &FetchResult{
		Document:   doc,
		Hash:       hash,
		EntryCount: entryCount,
		Format:     format,
	}
}

// SourceHandlerFactory creates source handlers based on source type
type SourceHandlerFactory interface {
	// CreateHandler creates a source handler for the given source type
	CreateHandler(sourceType string) (SourceHandler, error)
}

// DefaultTableDataValidator is the default implementation of TableDataValidator
type DefaultTableDataValidator struct{}

// NewTableDataValidator creates a new default table data validator
func NewTableDataValidator() TableDataValidator {
	return &DefaultTableDataValidator{}
}

// ValidateData validates raw data and returns a parsed table document
func (*DefaultTableDataValidator) ValidateData(data []byte, format string) (*table.Document, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("data cannot be empty")
	}

	parsed, err := table.ParseFormat(format)
	if err != nil {
		return nil, err
	}

	return table.Decode(data, parsed)
}

// resolveFormat determines the document format for a table source. An
// explicit format wins; otherwise file-backed sources infer it from the
// document path, and everything else defaults to JSON.
func resolveFormat(tblCfg *config.TableConfig) string {
	if tblCfg.Format != "" {
		return tblCfg.Format
	}
	if tblCfg.File != nil {
		return string(table.DetectFormat(tblCfg.File.Path))
	}
	if tblCfg.Git != nil && tblCfg.Git.Path != "" {
		return string(table.DetectFormat(tblCfg.Git.Path))
	}
	return config.FormatJSON
}
