// Package errors defines the error taxonomy shared by the acquisition
// engine, the share client, and the session store.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies an error into the categories the engine knows how to
// handle. Handling decisions are made on kinds, never on message text.
type Kind string

const (
	// KindConfig marks an invalid or incomplete session at engine start.
	KindConfig Kind = "config"
	// KindAuth marks rejected credentials.
	KindAuth Kind = "auth"
	// KindNetwork marks transport failures, timeouts and unrecognized
	// upstream errors.
	KindNetwork Kind = "network"
	// KindRateLimited marks an upstream throttle response.
	KindRateLimited Kind = "rate_limited"
	// KindNoData marks a successful call that returned no recent reading.
	KindNoData Kind = "no_data"
	// KindCorruptConfig marks persisted state that exists but cannot be
	// parsed into a valid session.
	KindCorruptConfig Kind = "corrupt_config"
)

// Error is a classified error with an optional underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// New creates an Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error that records cause for unwrapping.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an Error of the same kind, so
// errors.Is works across wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf extracts the kind from anywhere in err's chain. It returns the
// empty kind when the chain carries no classified error.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err's chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
