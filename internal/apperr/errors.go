// Package apperr defines the typed errors surfaced by the service layer.
//
// Every operation reports failures as one of a small set of kinds so that the
// transport layer can map them to a response without inspecting messages.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error.
type Kind string

const (
	// KindNotFound means a referenced id does not resolve to a record.
	KindNotFound Kind = "NOT_FOUND"
	// KindInvalidInput means the caller supplied input that fails a
	// referential-integrity check.
	KindInvalidInput Kind = "BAD_USER_INPUT"
	// KindBadRequest means a state-machine precondition was violated.
	KindBadRequest Kind = "BAD_REQUEST"
	// KindInternal means an unexpected store or infrastructure failure.
	KindInternal Kind = "INTERNAL"
)

// Error is a classified error with an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the cause for errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.Err }

// NotFound builds a NOT_FOUND error.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// InvalidInput builds a BAD_USER_INPUT error.
func InvalidInput(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// BadRequest builds a BAD_REQUEST error.
func BadRequest(format string, args ...any) *Error {
	return &Error{Kind: KindBadRequest, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected failure.
func Internal(err error, format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsNotFound reports whether err is classified NOT_FOUND.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }
