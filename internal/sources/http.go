package sources

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"time"

	"github.com/involucelate/chef/internal/config"
	"github.com/involucelate/chef/internal/httpclient"
)

// httpSourceHandler handles table documents served from HTTP endpoints
type httpSourceHandler struct {
	httpClient httpclient.Client
	validator  TableDataValidator
}

var _ SourceHandler = (*httpSourceHandler)(nil)

// NewHTTPSourceHandler creates a new HTTP source handler
func NewHTTPSourceHandler() SourceHandler {
	return &httpSourceHandler{
		httpClient: httpclient.NewDefaultClient(0), // Use default timeout
		validator:  NewTableDataValidator(),
	}
}

// Validate validates the HTTP source configuration
func (*httpSourceHandler) Validate(tblCfg *config.TableConfig) error {
	if tblCfg == nil {
		return fmt.Errorf("table configuration cannot be nil")
	}

	if tblCfg.HTTP == nil {
		return fmt.Errorf("http configuration is required")
	}

	if tblCfg.HTTP.Endpoint == "" {
		return fmt.Errorf("http endpoint cannot be empty")
	}

	return nil
}

// FetchTable retrieves the table document from the HTTP endpoint
func (h *httpSourceHandler) FetchTable(ctx context.Context, tblCfg *config.TableConfig) (*FetchResult, error) {
	data, hash, err := h.fetchEndpointData(ctx, tblCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch endpoint data: %w", err)
	}

	// Validate and parse the table document
	format := resolveFormat(tblCfg)
	doc, err := h.validator.ValidateData(data, format)
	if err != nil {
		return nil, fmt.Errorf("table document validation failed: %w", err)
	}

	return NewFetchResult(doc, hash, format), nil
}

// fetchEndpointData fetches the document bytes and calculates their hash
func (h *httpSourceHandler) fetchEndpointData(ctx context.Context, tblCfg *config.TableConfig) ([]byte, string, error) {
	// Validate table configuration
	if err := h.Validate(tblCfg); err != nil {
		return nil, "", fmt.Errorf("source validation failed: %w", err)
	}

	endpoint := tblCfg.HTTP.Endpoint

	startTime := time.Now()
	data, err := h.httpClient.Get(ctx, endpoint)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch %s: %w", endpoint, err)
	}

	slog.Debug("Fetched table document",
		"endpoint", endpoint,
		"bytes", len(data),
		"duration", time.Since(startTime).String())

	// Calculate hash
	hash := fmt.Sprintf("%x", sha256.Sum256(data))

	return data, hash, nil
}

// CurrentHash returns the current hash of the endpoint data without parsing it
func (h *httpSourceHandler) CurrentHash(ctx context.Context, tblCfg *config.TableConfig) (string, error) {
	_, hash, err := h.fetchEndpointData(ctx, tblCfg)
	if err != nil {
		return "", err
	}

	return hash, nil
}
