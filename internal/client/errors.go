package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Match these with errors.Is; the concrete values are *TransportError and
// *StatusError.
var (
	ErrTransport       = errors.New("backend unreachable")
	ErrUnauthorized    = errors.New("session expired")
	ErrForbidden       = errors.New("access denied")
	ErrNotFound        = errors.New("not found")
	ErrServer          = errors.New("backend error")
	ErrInvalidResponse = errors.New("invalid response")
)

// TransportError means no HTTP response was received: dial failure, timeout,
// or a cancelled context.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// StatusError is a non-2xx response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, msg)
}

func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrServer:
		return e.StatusCode >= 500
	}
	return false
}
