// Package apperr classifies application errors so callers can map them to
// stable response categories without parsing messages.
package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies the category of a failure.
type Kind string

const (
	// KindValidation marks malformed or missing input, detected before any
	// external call is made.
	KindValidation Kind = "validation"
	// KindNotFound marks a referenced entity that does not exist.
	KindNotFound Kind = "not_found"
	// KindConflict marks a request that is inconsistent with current state,
	// including wrong-state transitions and duplicate active records.
	KindConflict Kind = "conflict"
	// KindAuthorization marks a caller that does not match the entity's
	// required principal.
	KindAuthorization Kind = "authorization"
	// KindPayment marks a failed or timed-out payment capture. No partial
	// state was created.
	KindPayment Kind = "payment"
	// KindDependency marks a transient failure of an external collaborator.
	// Retryable; never treated as "does not exist".
	KindDependency Kind = "dependency"
)

// Error is an application error with a kind and optional wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two application errors by kind so errors.Is(err, apperr.Conflictf(""))
// style sentinels work. Message content is ignored.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New creates an error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind around a cause.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Validationf creates a validation error.
func Validationf(format string, args ...interface{}) *Error {
	return New(KindValidation, format, args...)
}

// NotFoundf creates a not-found error.
func NotFoundf(format string, args ...interface{}) *Error {
	return New(KindNotFound, format, args...)
}

// Conflictf creates a conflict error.
func Conflictf(format string, args ...interface{}) *Error {
	return New(KindConflict, format, args...)
}

// Authorizationf creates an authorization error.
func Authorizationf(format string, args ...interface{}) *Error {
	return New(KindAuthorization, format, args...)
}

// Paymentf creates a payment error.
func Paymentf(format string, args ...interface{}) *Error {
	return New(KindPayment, format, args...)
}

// Dependencyf creates a dependency error.
func Dependencyf(format string, args ...interface{}) *Error {
	return New(KindDependency, format, args...)
}

// KindOf returns the kind of err, or an empty kind for unclassified errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
