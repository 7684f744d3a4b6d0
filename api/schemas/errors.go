package schemas

import (
	"errors"
	"fmt"
)

// ErrorKind tags a core error so callers can branch on it without string matching.
type ErrorKind string

const (
	KindNotFound           ErrorKind = "not_found"
	KindNoOptionsAvailable ErrorKind = "no_options_available"
	KindCatalogExhausted   ErrorKind = "catalog_exhausted"
	KindAlreadyRunning     ErrorKind = "already_running"
	KindProfileMissing     ErrorKind = "profile_missing"
	KindDriverError        ErrorKind = "driver_error"
	KindInvalidArgument    ErrorKind = "invalid_argument"
)

// Sentinels for errors.Is. Any *Error with the same Kind matches.
var (
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrNoOptionsAvailable = &Error{Kind: KindNoOptionsAvailable}
	ErrCatalogExhausted   = &Error{Kind: KindCatalogExhausted}
	ErrAlreadyRunning     = &Error{Kind: KindAlreadyRunning}
	ErrProfileMissing     = &Error{Kind: KindProfileMissing}
	ErrDriver             = &Error{Kind: KindDriverError}
	ErrInvalidArgument    = &Error{Kind: KindInvalidArgument}
)

// Error is the tagged error type shared by every core package.
type Error struct {
	Kind ErrorKind
	// Op is the operation that failed, e.g. "catalog.SampleOption".
	Op string
	// Key identifies the subject: a trait key, browser id or profile id.
	Key string
	Err error
}

// E builds a tagged error.
func E(kind ErrorKind, op, key string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Key: key, Err: cause}
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Key != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Key)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind only, so the package sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first tagged error in the chain, or "" if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
