package gallery

import (
	"errors"
	"fmt"
)

// Error kinds. Every *Error unwraps to exactly one of these, so callers
// classify with errors.Is.
var (
	ErrConfiguration   = errors.New("configuration error")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrConsistency     = errors.New("consistency error")
)

// ErrUndeterminedTag marks the configuration error raised when the first
// listed directory under the base prefix has an empty name.
var ErrUndeterminedTag = errors.New("could not determine tag name from storage layout")

// Error is a classified failure whose Message is safe to show to clients.
type Error struct {
	Kind    error
	Message string
	cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() []error {
	if e.cause != nil {
		return []error{e.Kind, e.cause}
	}
	return []error{e.Kind}
}

func newError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
