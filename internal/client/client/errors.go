package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnavailable means the API could not be reached or timed out.
	ErrUnavailable = errors.New("server unavailable")
	// ErrUnauthorized means the API rejected the credentials (401/403).
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound means the target record does not exist on the server (404).
	ErrNotFound = errors.New("not found")
	// ErrRejected means the API refused the request itself (any other 4xx).
	// Sending it again unchanged will not help.
	ErrRejected = errors.New("request rejected")
	// ErrServer covers 5xx and any other unclassified failure.
	ErrServer = errors.New("server error")
	// ErrLocalDataNotAvailable means an offline fallback found nothing cached.
	ErrLocalDataNotAvailable = errors.New("local data unavailable")
)

// APIError is an error status answered by the API. It unwraps to one of the
// sentinels above so callers can match it with errors.Is.
type APIError struct {
	StatusCode int
	Message    string
	kind       error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s (%d)", e.Unwrap(), e.StatusCode)
	}
	return fmt.Sprintf("%s (%d): %s", e.Unwrap(), e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.kind == nil {
		return classifyStatus(e.StatusCode)
	}
	return e.kind
}

// classifyStatus maps an HTTP status to its sentinel.
func classifyStatus(code int) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrUnauthorized
	case code == http.StatusNotFound:
		return ErrNotFound
	case code >= 400 && code < 500:
		return ErrRejected
	default:
		return ErrServer
	}
}

// IsRetryable reports whether an operation failing with err may succeed when
// attempted again later without changes.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrServer)
}
