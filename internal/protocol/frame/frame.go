package frame

import (
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/marquee/internal/protocol/byteorder"
)

const (
	HeaderLen        = 24
	Magic     uint32 = 0x4D515545
	Version   uint16 = 1

	FlagIsResponse uint16 = 0x01
	FlagIsError    uint16 = 0x02
)

var (
	ErrShortHeader        = errors.New("frame: short fixed header")
	ErrInvalidMagic       = errors.New("frame: invalid magic")
	ErrUnsupportedVersion = errors.New("frame: unsupported version")
	ErrPayloadTooLarge    = errors.New("frame: payload too large")
	ErrTruncatedPayload   = errors.New("frame: truncated payload")
)

// Header is the fixed wire header.
type Header struct {
	Magic       uint32
	Version     uint16
	Flags       uint16
	MessageID   uint64
	MessageType uint32
	PayloadLen  uint32
}

// Frame is one complete wire message.
type Frame struct {
	Header  Header
	Payload []byte
}

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxPayloadBytes uint32
}

func DefaultLimits() Limits {
	return Limits{
		MaxPayloadBytes: 8 * 1024 * 1024,
	}
}

func ReadFrame(r io.Reader, limits Limits) (Frame, error) {
	var fixed [HeaderLen]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, ErrShortHeader
		}
		return Frame{}, err
	}

	h, err := DecodeHeader(fixed[:])
	if err != nil {
		return Frame{}, err
	}
	if h.Magic != Magic {
		return Frame{}, ErrInvalidMagic
	}
	if h.Version != Version {
		return Frame{}, ErrUnsupportedVersion
	}
	if h.PayloadLen > limits.MaxPayloadBytes {
		return Frame{}, ErrPayloadTooLarge
	}

	payload := make([]byte, h.PayloadLen)
	if h.PayloadLen > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				return Frame{}, ErrTruncatedPayload
			}
			return Frame{}, err
		}
	}

	return Frame{Header: h, Payload: payload}, nil
}

func WriteFrame(w io.Writer, f Frame, limits Limits) error {
	if uint64(len(f.Payload)) > uint64(limits.MaxPayloadBytes) {
		return ErrPayloadTooLarge
	}

	h := f.Header
	h.Magic = Magic
	h.Version = Version
	h.PayloadLen = uint32(len(f.Payload))

	buf := make([]byte, HeaderLen+len(f.Payload))
	putHeader(buf, h)
	copy(buf[HeaderLen:], f.Payload)
	_, err := w.Write(buf)
	return err
}

func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderLen)
	putHeader(buf, h)
	return buf
}

func putHeader(buf []byte, h Header) {
	byteorder.PutUint32(buf, 0, h.Magic)
	byteorder.PutUint16(buf, 4, h.Version)
	byteorder.PutUint16(buf, 6, h.Flags)
	byteorder.PutUint64(buf, 8, h.MessageID)
	byteorder.PutUint32(buf, 16, h.MessageType)
	byteorder.PutUint32(buf, 20, h.PayloadLen)
}

func DecodeHeader(b []byte) (Header, error) {
	if len(b) != HeaderLen {
		return Header{}, fmt.Errorf("frame: invalid fixed header length: %d", len(b))
	}
	return Header{
		Magic:       byteorder.Uint32(b, 0),
		Version:     byteorder.Uint16(b, 4),
		Flags:       byteorder.Uint16(b, 6),
		MessageID:   byteorder.Uint64(b, 8),
		MessageType: byteorder.Uint32(b, 16),
		PayloadLen:  byteorder.Uint32(b, 20),
	}, nil
}
