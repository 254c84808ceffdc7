package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError describes a failed backend call.
type APIError struct {
	// Op is the client operation that failed.
	Op string

	// Status is the HTTP status code, or 0 when no response was received.
	Status int

	// Message is the backend's own error text, if it sent one.
	Message string

	// Err is the underlying transport or decoding error.
	Err error
}

func (e *APIError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.Status, e.Message)
	default:
		return fmt.Sprintf("%s: HTTP %d", e.Op, e.Status)
	}
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// MessageOr returns the backend's message carried by err, or fallback when
// the backend did not send one.
func MessageOr(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// IsUnauthorized reports whether the backend rejected the session.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden
	}
	return false
}

// IsNotFound reports whether the backend answered 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}
