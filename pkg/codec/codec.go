// Package codec implements the PostgreSQL wire representations of the
// built-in scalar and composite types. All functions are pure, they encode
// into and decode from byte slices without performing any I/O.
package codec

import (
	"errors"
	"fmt"
)

// ErrValueTooLarge indicates that a decoded value exceeds the upper bound of
// the host representation.
var ErrValueTooLarge = errors.New("value too large")

// ErrValueTooSmall indicates that a decoded value exceeds the lower bound of
// the host representation.
var ErrValueTooSmall = errors.New("value too small")

// DecodeError is returned whenever a wire value could not be interpreted. The
// offset points at the byte within the input at which interpretation failed.
type DecodeError struct {
	Reason string
	Offset int
	cause  error
}

func (e *DecodeError) Error() string {
	if e.Offset > 0 {
		return fmt.Sprintf("%s (offset %d)", e.Reason, e.Offset)
	}

	return e.Reason
}

func (e *DecodeError) Unwrap() error {
	return e.cause
}

// NewDecodeError constructs a new decode error with the given human readable
// reason and input offset.
func NewDecodeError(reason string, offset int) *DecodeError {
	return &DecodeError{Reason: reason, Offset: offset}
}

func newDecodeErrorf(offset int, format string, args ...any) *DecodeError {
	return &DecodeError{Reason: fmt.Sprintf(format, args...), Offset: offset}
}

func wrapDecodeError(err error, reason string, offset int) *DecodeError {
	return &DecodeError{Reason: reason, Offset: offset, cause: err}
}
