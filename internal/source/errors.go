package source

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Failure kinds. Match with errors.Is.
var (
	ErrNetwork         = errors.New("network error")
	ErrTimeout         = errors.New("timeout")
	ErrInvalidResponse = errors.New("invalid response")
)

// Error is a typed source failure
type Error struct {
	Source string
	Kind   error
	Err    error
}

// Error implements error
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("source %s: %v", e.Source, e.Kind)
	}
	return fmt.Sprintf("source %s: %v: %v", e.Source, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindName returns a short label for the failure kind
func KindName(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrInvalidResponse):
		return "invalid_response"
	case errors.Is(err, ErrNetwork):
		return "network"
	default:
		return "unknown"
	}
}

func newError(source string, kind, err error) *Error {
	return &Error{Source: source, Kind: kind, Err: err}
}

// classifyTransport maps a client.Do error to a failure kind
func classifyTransport(source string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(source, ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newError(source, ErrTimeout, err)
	}
	return newError(source, ErrNetwork, err)
}
