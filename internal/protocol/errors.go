package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrNilMessage          = errors.New("protocol: nil message")
	ErrUnknownMessageType  = errors.New("protocol: unknown message type")
	ErrArgKindMismatch     = errors.New("protocol: argument kind mismatch")
	ErrMessageTypeMismatch = errors.New("protocol: message type mismatch")
)

// DecodeError reports a frame whose payload could not be decoded into values.
// The frame itself was read in full.
type DecodeError struct {
	MessageID   uint64
	MessageType MessageType
	Err         error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("protocol: message %d (%s): %v", e.MessageID, e.MessageType, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// MissingArgError indicates a required argument was not present.
type MissingArgError struct {
	Index int
	Name  string
}

func (e MissingArgError) Error() string {
	return fmt.Sprintf("protocol: missing required argument %d (%s)", e.Index, e.Name)
}
