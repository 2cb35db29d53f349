package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTransport wraps network-level failures: DNS, refused connections,
	// timeouts and truncated bodies.
	ErrTransport = errors.New("transport failure")
	// ErrDecode is returned when a 2xx body is not a valid envelope.
	ErrDecode = errors.New("malformed response")
)

// Error is a rejection reported by the backend, either as a non-2xx status
// or as a 2xx envelope with success=false.
type Error struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %d %s", e.Status, e.Message)
	}
	text := http.StatusText(e.Status)
	if text == "" {
		text = "request failed"
	}
	return fmt.Sprintf("api: %d %s", e.Status, text)
}

// Unauthorized reports whether the backend rejected the credentials.
func (e *Error) Unauthorized() bool {
	return e != nil && e.Status == http.StatusUnauthorized
}

// Rejection builds the error for a 2xx envelope whose success flag is false.
func (e Envelope[T]) Rejection() error {
	if e.Success {
		return nil
	}
	return &Error{Status: http.StatusOK, Code: e.Code, Message: e.Message}
}

// IsUnauthorized reports whether err carries a 401 from the backend.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Unauthorized()
}

// MessageOf returns the backend-supplied message carried by err, if any.
func MessageOf(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}
