package httpclient

import "fmt"

// HTTPError represents a non-success HTTP response
type HTTPError struct {
	// StatusCode is the HTTP status code of the response
	StatusCode int

	// URL is the request URL
	URL string

	// Message is a short description, usually the response body
	Message string
}

// NewHTTPError creates a new HTTPError
func NewHTTPError(statusCode int, url, message string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		URL:        url,
		Message:    message,
	}
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for URL %s: %s", e.StatusCode, e.URL, e.Message)
}
