package protocol

import (
	"io"

	"github.com/danmuck/marquee/internal/protocol/frame"
)

// Decode reads a single message from r. Frame errors are returned as-is and
// leave the stream unusable; payload errors come back as *DecodeError.
func (c Codec) Decode(r io.Reader) (*Message, error) {
	f, err := frame.ReadFrame(r, c.Limits)
	if err != nil {
		return nil, err
	}
	return c.FromFrame(f)
}

// FromFrame decodes the tagged-value payload of f.
func (c Codec) FromFrame(f frame.Frame) (*Message, error) {
	msg := &Message{
		ID:    f.Header.MessageID,
		Type:  MessageType(f.Header.MessageType),
		Flags: f.Header.Flags,
	}
	if len(f.Payload) == 0 {
		return msg, nil
	}
	args, err := c.Values.DecodeAll(f.Payload)
	if err != nil {
		return nil, &DecodeError{MessageID: msg.ID, MessageType: msg.Type, Err: err}
	}
	msg.Args = args
	return msg, nil
}

// Decode reads a message using DefaultCodec.
func Decode(r io.Reader) (*Message, error) {
	return DefaultCodec().Decode(r)
}
