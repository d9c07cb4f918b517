// Package mogerr implements the typed error taxonomy every tool and
// subsystem surfaces through, rather than returning raw errors up the
// stack.
package mogerr

import "fmt"

// Kind enumerates the closed set of error categories the system
// distinguishes.
type Kind string

const (
	ConfigError        Kind = "ConfigError"
	PathOutsideRoot    Kind = "PathOutsideRoot"
	FileNotFound       Kind = "FileNotFound"
	PermissionDenied   Kind = "PermissionDenied"
	InvalidArguments   Kind = "InvalidArguments"
	InvalidPatchFormat Kind = "InvalidPatchFormat"
	PatchConflict      Kind = "PatchConflict"
	StreamCancelled    Kind = "StreamCancelled"
	StreamTransport    Kind = "StreamTransport"
	SessionCorrupted   Kind = "SessionCorrupted"
)

// Error is a typed error carrying a Kind alongside a human-readable
// message and an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error of the given kind around a cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// As is a thin re-export point so callers don't need a second import for
// the common case of extracting the typed error.
func As(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
