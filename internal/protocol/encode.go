package protocol

import (
	"io"

	"github.com/danmuck/marquee/internal/protocol/frame"
	"github.com/danmuck/marquee/internal/protocol/value"
)

// Codec converts messages to and from frames.
type Codec struct {
	Limits frame.Limits
	Values value.Decoder
}

func DefaultCodec() Codec {
	return Codec{
		Limits: frame.DefaultLimits(),
		Values: value.DefaultDecoder,
	}
}

// Encode writes msg to w using the protocol wire format.
func (c Codec) Encode(w io.Writer, msg *Message) error {
	f, err := c.ToFrame(msg)
	if err != nil {
		return err
	}
	return frame.WriteFrame(w, f, c.Limits)
}

// ToFrame encodes msg arguments into a frame payload.
func (c Codec) ToFrame(msg *Message) (frame.Frame, error) {
	if msg == nil {
		return frame.Frame{}, ErrNilMessage
	}
	return frame.Frame{
		Header: frame.Header{
			Flags:       msg.Flags,
			MessageID:   msg.ID,
			MessageType: uint32(msg.Type),
		},
		Payload: value.EncodeAll(msg.Args),
	}, nil
}

// Encode writes msg using DefaultCodec.
func Encode(w io.Writer, msg *Message) error {
	return DefaultCodec().Encode(w, msg)
}
