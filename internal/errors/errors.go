// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies failures so callers can decide how to surface them
// without inspecting driver or transport specifics.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindQuotaExceeded
	KindConflict
	KindStorage
	KindTransport
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindConflict:
		return "conflict"
	case KindStorage:
		return "storage"
	case KindTransport:
		return "transport"
	case KindConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// Error is the single error type used across service boundaries.
// Msg is safe to show to a user; Err keeps the underlying cause for logs.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on kind when the target is a bare *Error sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

func newErr(k Kind, msg string, cause error) error {
	return &Error{Kind: k, Msg: msg, Err: cause}
}

func Validation(msg string) error    { return newErr(KindValidation, msg, nil) }
func NotFound(msg string) error      { return newErr(KindNotFound, msg, nil) }
func QuotaExceeded(msg string) error { return newErr(KindQuotaExceeded, msg, nil) }
func Conflict(msg string) error      { return newErr(KindConflict, msg, nil) }
func Configuration(msg string) error { return newErr(KindConfiguration, msg, nil) }

func Storage(msg string, cause error) error   { return newErr(KindStorage, msg, cause) }
func Transport(msg string, cause error) error { return newErr(KindTransport, msg, cause) }

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, k Kind) bool { return err != nil && KindOf(err) == k }

// Message returns the user-facing message of err, or "" if err is not an *Error.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return ""
}
