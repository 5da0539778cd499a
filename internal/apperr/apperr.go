// Package apperr defines the error taxonomy shared by the REST handlers
// and the websocket event dispatcher. Handlers match with errors.Is and
// translate to an HTTP status or an "error" event; internal details never
// reach the client.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
	ErrRateLimited  = errors.New("rate limit exceeded")
	ErrConflict     = errors.New("conflict")
)

// Error wraps a sentinel with a client-safe message.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

// New builds an Error of the given kind with a client-facing message.
func New(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf is New with formatting.
func Newf(kind error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Status maps an error to an HTTP status code. Unknown errors map to 500.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return 401
	case errors.Is(err, ErrForbidden):
		return 403
	case errors.Is(err, ErrNotFound):
		return 404
	case errors.Is(err, ErrConflict):
		return 409
	case errors.Is(err, ErrRateLimited):
		return 429
	case errors.Is(err, ErrInvalidInput):
		return 400
	default:
		return 500
	}
}

// ClientMessage returns the message safe to send to a client. Unexpected
// errors are masked.
func ClientMessage(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrRateLimited),
		errors.Is(err, ErrConflict):
		return err.Error()
	default:
		return "Internal server error"
	}
}
