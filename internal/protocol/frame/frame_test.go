package frame

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/danmuck/marquee/internal/protocol/value"
	"github.com/stretchr/testify/require"
)

func TestReadWriteFrameRoundTrip(t *testing.T) {
	payload := value.EncodeAll([]value.Value{value.String("intent-1"), value.Integer(7)})
	in := Frame{
		Header:  Header{MessageID: 42, MessageType: 3, Flags: FlagIsResponse},
		Payload: payload,
	}
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, in, DefaultLimits()))

	out, err := ReadFrame(&buf, DefaultLimits())
	require.NoError(t, err)
	require.Equal(t, Magic, out.Header.Magic)
	require.Equal(t, Version, out.Header.Version)
	require.Equal(t, uint64(42), out.Header.MessageID)
	require.Equal(t, uint32(3), out.Header.MessageType)
	require.Equal(t, FlagIsResponse, out.Header.Flags)
	require.Equal(t, payload, out.Payload)
}

func TestReadFrameMalformedHeaderIsDeterministic(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{1, 2, 3}), DefaultLimits())
	require.ErrorIs(t, err, ErrShortHeader)
}

func TestReadFrameCleanEOF(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader(nil), DefaultLimits())
	require.True(t, errors.Is(err, io.EOF))
}

func TestReadFrameInvalidMagic(t *testing.T) {
	buf := EncodeHeader(Header{Magic: 1, Version: Version})
	_, err := ReadFrame(bytes.NewReader(buf), DefaultLimits())
	require.ErrorIs(t, err, ErrInvalidMagic)
}

func TestReadFrameUnsupportedVersion(t *testing.T) {
	buf := EncodeHeader(Header{Magic: Magic, Version: 9})
	_, err := ReadFrame(bytes.NewReader(buf), DefaultLimits())
	require.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestReadFramePayloadLimit(t *testing.T) {
	buf := EncodeHeader(Header{Magic: Magic, Version: Version, PayloadLen: 65})
	_, err := ReadFrame(bytes.NewReader(buf), Limits{MaxPayloadBytes: 64})
	require.ErrorIs(t, err, ErrPayloadTooLarge)

	err = WriteFrame(io.Discard, Frame{Payload: make([]byte, 65)}, Limits{MaxPayloadBytes: 64})
	require.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestReadFrameTruncatedPayload(t *testing.T) {
	buf := EncodeHeader(Header{Magic: Magic, Version: Version, PayloadLen: 4})
	buf = append(buf, 0x00, 0x01)
	_, err := ReadFrame(bytes.NewReader(buf), DefaultLimits())
	require.ErrorIs(t, err, ErrTruncatedPayload)
}
