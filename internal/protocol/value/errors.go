package value

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedEncoding = errors.New("value: malformed encoding")
	ErrKindMismatch      = errors.New("value: kind mismatch")
	ErrDuplicateField    = errors.New("value: duplicate record field")
	ErrFieldNameTooLong  = errors.New("value: record field name too long")
)

// MalformedError reports where decoding stopped. It matches ErrMalformedEncoding.
type MalformedError struct {
	Offset int
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("value: malformed encoding at offset %d: %s", e.Offset, e.Reason)
}

func (e *MalformedError) Unwrap() error {
	return ErrMalformedEncoding
}

func malformed(off int, format string, args ...any) error {
	return &MalformedError{Offset: off, Reason: fmt.Sprintf(format, args...)}
}

func kindMismatch(got Value, want Kind) error {
	return fmt.Errorf("%w: got %s want %s", ErrKindMismatch, kindOf(got), want)
}
