package httpclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/involucelate/chef/internal/httpclient"
)

// newTestServer creates a new test server with keep-alives disabled.
// This prevents flaky tests when running in parallel, as closing a server
// with keep-alives enabled can affect other tests sharing the HTTP transport.
func newTestServer(handler http.Handler) *httptest.Server {
	server := httptest.NewServer(handler)
	server.Config.SetKeepAlivesEnabled(false)
	return server
}

func TestNewDefaultClient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		timeout time.Duration
	}{
		{
			name:    "create client with custom timeout",
			timeout: 5 * time.Second,
		},
		{
			name:    "create client with zero timeout uses default",
			timeout: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := httpclient.NewDefaultClient(tt.timeout)
			require.NotNil(t, client, "client should not be nil")
		})
	}
}

func TestDefaultClient_Get_SuccessfulRequest(t *testing.T) {
	t.Parallel()

	var receivedUserAgent string
	var receivedAccept string

	mockServer := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedUserAgent = r.Header.Get("User-Agent")
		receivedAccept = r.Header.Get("Accept")

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"entries": []}`))
	}))
	defer mockServer.Close()

	client := httpclient.NewDefaultClient(30 * time.Second)

	data, err := client.Get(context.Background(), mockServer.URL)

	require.NoError(t, err)
	assert.Equal(t, []byte(`{"entries": []}`), data)
	assert.Equal(t, "chef-dispatch-api/1.0", receivedUserAgent, "User-Agent header should be set correctly")
	assert.Equal(t, "application/json", receivedAccept, "Accept header should be set correctly")
}

func TestDefaultClient_Get_ClientErrorsDoNotRetry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		statusCode    int
		responseBody  string
		errorContains string
	}{
		{
			name:          "404 Not Found",
			statusCode:    http.StatusNotFound,
			responseBody:  "Not Found",
			errorContains: "HTTP 404",
		},
		{
			name:          "401 Unauthorized",
			statusCode:    http.StatusUnauthorized,
			responseBody:  "Unauthorized",
			errorContains: "HTTP 401",
		},
		{
			name:          "403 Forbidden",
			statusCode:    http.StatusForbidden,
			responseBody:  "Forbidden",
			errorContains: "HTTP 403",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var attempts atomic.Int32
			mockServer := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				attempts.Add(1)
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.responseBody))
			}))
			defer mockServer.Close()

			client := httpclient.NewDefaultClient(30 * time.Second)

			_, err := client.Get(context.Background(), mockServer.URL)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorContains)
			assert.Equal(t, int32(1), attempts.Load(), "client errors should not be retried")

			var httpErr *httpclient.HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, tt.statusCode, httpErr.StatusCode)
		})
	}
}

func TestDefaultClient_Get_RetriesTransientFailures(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	mockServer := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"entries": []}`))
	}))
	defer mockServer.Close()

	client := httpclient.NewDefaultClient(30 * time.Second)

	data, err := client.Get(context.Background(), mockServer.URL)

	require.NoError(t, err)
	assert.Equal(t, []byte(`{"entries": []}`), data)
	assert.Equal(t, int32(3), attempts.Load(), "expected two retries before success")
}

func TestDefaultClient_Get_ExhaustsRetries(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	mockServer := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("Bad Gateway"))
	}))
	defer mockServer.Close()

	client := httpclient.NewDefaultClient(30 * time.Second)

	_, err := client.Get(context.Background(), mockServer.URL)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 502")
	assert.Equal(t, int32(4), attempts.Load(), "expected all attempts to be used")
}

func TestDefaultClient_Get_NetworkErrors(t *testing.T) {
	t.Parallel()

	client := httpclient.NewDefaultClient(2 * time.Second)

	_, err := client.Get(context.Background(), "://invalid-url")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create request")
}

func TestDefaultClient_Get_ContextCancellation(t *testing.T) {
	t.Parallel()

	mockServer := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer mockServer.Close()

	client := httpclient.NewDefaultClient(30 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := client.Get(ctx, mockServer.URL)
	require.Error(t, err)
}

func TestHTTPError(t *testing.T) {
	t.Parallel()

	err := httpclient.NewHTTPError(404, "http://example.com", "Not Found")
	assert.Equal(t, "HTTP 404 for URL http://example.com: Not Found", err.Error())
}
