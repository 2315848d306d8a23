// Package apperr defines the error kinds every till operation can fail with.
// Services return *Error values; the HTTP layer and the CLI translate the
// kind into a status code or exit code. The database unit of work is always
// rolled back when one of these errors escapes it.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by how it must be surfaced to the user.
type Kind int

const (
	KindInternal     Kind = iota // unexpected; never shown verbatim
	KindUser                     // precondition violated by a user action
	KindIncompatible             // a modifier refused the sale
	KindConflict                 // concurrent update lost a race
	KindExternal                 // printer, mail or network failure
	KindFatal                    // database unreachable or schema mismatch
	KindNotFound
	KindForbidden
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindIncompatible:
		return "incompatible"
	case KindConflict:
		return "conflict"
	case KindExternal:
		return "external"
	case KindFatal:
		return "fatal"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

// Error carries a user-visible message and, optionally, the cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same kind and message, so that
// sentinel values declared with these constructors work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func User(format string, args ...any) *Error         { return newf(KindUser, format, args...) }
func Incompatible(format string, args ...any) *Error { return newf(KindIncompatible, format, args...) }
func Conflict(format string, args ...any) *Error     { return newf(KindConflict, format, args...) }
func NotFound(format string, args ...any) *Error     { return newf(KindNotFound, format, args...) }
func Forbidden(format string, args ...any) *Error    { return newf(KindForbidden, format, args...) }
func Unauthorized(format string, args ...any) *Error { return newf(KindUnauthorized, format, args...) }

// External wraps an I/O failure from a printer, mailer or remote service.
func External(err error, format string, args ...any) *Error {
	e := newf(KindExternal, format, args...)
	e.Err = err
	return e
}

// Fatal wraps a failure the process cannot recover from.
func Fatal(err error, format string, args ...any) *Error {
	e := newf(KindFatal, format, args...)
	e.Err = err
	return e
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the user-visible message for err. Internal errors get
// a generic message so that database details are not leaked.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Kind == KindInternal {
			return "internal error"
		}
		if e.Message != "" {
			return e.Message
		}
	}
	return "internal error"
}
