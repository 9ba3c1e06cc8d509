// Package httpclient provides the HTTP client used to fetch table
// documents from remote endpoints, with retry on transient failures.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	// defaultTimeout is the per-request timeout used when none is given
	defaultTimeout = 30 * time.Second

	// maxRetries bounds the number of attempts per Get, including the first
	maxRetries = 4

	// maxResponseBytes bounds how large a fetched document may be
	maxResponseBytes = 32 * 1024 * 1024

	// userAgent identifies this client to remote endpoints
	userAgent = "chef-dispatch-api/1.0"
)

// Client defines the interface for fetching documents over HTTP
type Client interface {
	// Get fetches the document at url and returns the response body
	Get(ctx context.Context, url string) ([]byte, error)
}

// defaultClient implements Client using net/http with exponential backoff
type defaultClient struct {
	httpClient *http.Client
}

var _ Client = (*defaultClient)(nil)

// NewDefaultClient creates a new defaultClient. A non-positive timeout
// selects the default.
func NewDefaultClient(timeout time.Duration) Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &defaultClient{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Get fetches the document at url. Transient failures (network errors,
// 5xx responses, and 429) are retried with exponential backoff; other
// HTTP errors fail immediately.
func (c *defaultClient) Get(ctx context.Context, url string) ([]byte, error) {
	operation := func() ([]byte, error) {
		return c.getOnce(ctx, url)
	}

	data, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(maxRetries),
	)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *defaultClient) getOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network errors are worth retrying
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Read a short prefix of the body for the error message
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		httpErr := NewHTTPError(resp.StatusCode, url, strings.TrimSpace(string(body)))
		if retryableStatus(resp.StatusCode) {
			return nil, httpErr
		}
		return nil, backoff.Permanent(httpErr)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(data) > maxResponseBytes {
		return nil, backoff.Permanent(fmt.Errorf("response from %s is too large (max %d bytes)", url, maxResponseBytes))
	}

	return data, nil
}

// retryableStatus reports whether a status code indicates a transient condition
func retryableStatus(code int) bool {
	return code >= http.StatusInternalServerError || code == http.StatusTooManyRequests
}
