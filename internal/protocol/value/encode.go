package value

import (
	"math"

	"github.com/danmuck/marquee/internal/protocol/byteorder"
)

// EncodedLen returns the exact number of bytes Encode produces for v.
func EncodedLen(v Value) int {
	if v == nil {
		v = Void{}
	}
	return tagLen + v.payloadLen()
}

// Encode returns the tagged encoding of v. A nil value encodes as Void.
func Encode(v Value) []byte {
	return Append(make([]byte, 0, EncodedLen(v)), v)
}

// Append appends the tagged encoding of v to dst.
func Append(dst []byte, v Value) []byte {
	if v == nil {
		v = Void{}
	}
	dst = appendUint16(dst, uint16(v.Kind()))
	return v.appendPayload(dst)
}

// EncodeAll concatenates the encodings of vs.
func EncodeAll(vs []Value) []byte {
	n := 0
	for _, v := range vs {
		n += EncodedLen(v)
	}
	out := make([]byte, 0, n)
	for _, v := range vs {
		out = Append(out, v)
	}
	return out
}

func (Void) payloadLen() int                 { return 0 }
func (Void) appendPayload(dst []byte) []byte { return dst }

func (Bool) payloadLen() int { return 1 }
func (v Bool) appendPayload(dst []byte) []byte {
	if v {
		return append(dst, 1)
	}
	return append(dst, 0)
}

func (Integer) payloadLen() int { return 4 }
func (v Integer) appendPayload(dst []byte) []byte {
	off := len(dst)
	dst = append(dst, 0, 0, 0, 0)
	byteorder.PutInt32(dst, off, int32(v))
	return dst
}

func (Long) payloadLen() int { return 8 }
func (v Long) appendPayload(dst []byte) []byte {
	return appendUint64(dst, uint64(v))
}

func (Float) payloadLen() int { return 8 }
func (v Float) appendPayload(dst []byte) []byte {
	return appendUint64(dst, math.Float64bits(float64(v)))
}

func (v String) payloadLen() int { return lenPrefix + len(v) }
func (v String) appendPayload(dst []byte) []byte {
	dst = appendUint32(dst, uint32(len(v)))
	return append(dst, v...)
}

func (v Bytes) payloadLen() int { return lenPrefix + len(v) }
func (v Bytes) appendPayload(dst []byte) []byte {
	dst = appendUint32(dst, uint32(len(v)))
	return append(dst, v...)
}

func (v List) payloadLen() int {
	n := lenPrefix
	for _, elem := range v {
		n += EncodedLen(elem)
	}
	return n
}

func (v List) appendPayload(dst []byte) []byte {
	dst = appendUint32(dst, uint32(len(v)))
	for _, elem := range v {
		dst = Append(dst, elem)
	}
	return dst
}

func (v Record) payloadLen() int {
	n := lenPrefix
	for _, f := range v.fields {
		n += nameLenField + len(f.Name) + EncodedLen(f.Value)
	}
	return n
}

func (v Record) appendPayload(dst []byte) []byte {
	dst = appendUint32(dst, uint32(len(v.fields)))
	for _, f := range v.fields {
		dst = appendUint16(dst, uint16(len(f.Name)))
		dst = append(dst, f.Name...)
		dst = Append(dst, f.Value)
	}
	return dst
}

func appendUint16(dst []byte, v uint16) []byte {
	off := len(dst)
	dst = append(dst, 0, 0)
	byteorder.PutUint16(dst, off, v)
	return dst
}

func appendUint32(dst []byte, v uint32) []byte {
	off := len(dst)
	dst = append(dst, 0, 0, 0, 0)
	byteorder.PutUint32(dst, off, v)
	return dst
}

func appendUint64(dst []byte, v uint64) []byte {
	off := len(dst)
	dst = append(dst, 0, 0, 0, 0, 0, 0, 0, 0)
	byteorder.PutUint64(dst, off, v)
	return dst
}
