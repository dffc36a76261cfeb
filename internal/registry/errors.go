// Package registry is an HTTP client for the upstream package registry's
// change feed, document fetch, and info endpoints. It
// implements the watch.RegistryReader and watch.RegistryFetcher
// contracts; the watch package never imports this one.
package registry

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for HTTP status classification.
var (
	ErrBadRequest  = errors.New("registry: bad request")
	ErrNotFound    = errors.New("registry: not found")
	ErrGone        = errors.New("registry: resource gone")
	ErrThrottled   = errors.New("registry: throttled")
	ErrServerError = errors.New("registry: server error")
)

// APIError wraps a sentinel with the HTTP status and response body for
// debugging, checked with errors.Is.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("registry: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusGone:
		return ErrGone
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}

func isRetryable(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
