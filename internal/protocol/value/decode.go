package value

import (
	"math"

	"github.com/danmuck/marquee/internal/protocol/byteorder"
)

const (
	DefaultMaxDepth    = 32
	DefaultMaxElements = 1 << 16
)

// Decoder bounds nesting and container sizes while decoding untrusted input.
type Decoder struct {
	MaxDepth    int
	MaxElements int
}

var DefaultDecoder = Decoder{MaxDepth: DefaultMaxDepth, MaxElements: DefaultMaxElements}

// Decode reads one value at off using DefaultDecoder.
func Decode(b []byte, off int) (Value, int, error) {
	return DefaultDecoder.Decode(b, off)
}

// DecodeAll decodes consecutive values until b is exhausted.
func DecodeAll(b []byte) ([]Value, error) {
	return DefaultDecoder.DecodeAll(b)
}

// Decode reads one value at off and reports the bytes consumed. On error the
// consumed count is zero.
func (d Decoder) Decode(b []byte, off int) (Value, int, error) {
	if off < 0 || off > len(b) {
		return nil, 0, malformed(off, "offset outside buffer of %d bytes", len(b))
	}
	return d.decode(b, off, 0)
}

func (d Decoder) DecodeAll(b []byte) ([]Value, error) {
	out := make([]Value, 0, 4)
	for off := 0; off < len(b); {
		v, n, err := d.Decode(b, off)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		off += n
	}
	return out, nil
}

func (d Decoder) decode(b []byte, off int, depth int) (Value, int, error) {
	if len(b)-off < tagLen {
		return nil, 0, malformed(off, "need %d bytes for tag, have %d", tagLen, len(b)-off)
	}
	kind := Kind(byteorder.Uint16(b, off))
	info, ok := registry[kind]
	if !ok {
		return nil, 0, malformed(off, "unknown tag 0x%04x", uint16(kind))
	}
	v, n, err := info.decode(d, b, off+tagLen, depth)
	if err != nil {
		return nil, 0, err
	}
	return v, tagLen + n, nil
}

func (d Decoder) maxDepth() int {
	if d.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return d.MaxDepth
}

func (d Decoder) maxElements() int {
	if d.MaxElements <= 0 {
		return DefaultMaxElements
	}
	return d.MaxElements
}

func need(b []byte, off, n int, what string) error {
	if len(b)-off < n {
		return malformed(off, "%s needs %d bytes, have %d", what, n, len(b)-off)
	}
	return nil
}

func decodeVoid(_ Decoder, _ []byte, _ int, _ int) (Value, int, error) {
	return Void{}, 0, nil
}

func decodeBool(_ Decoder, b []byte, off int, _ int) (Value, int, error) {
	if err := need(b, off, 1, "bool"); err != nil {
		return nil, 0, err
	}
	switch b[off] {
	case 0:
		return Bool(false), 1, nil
	case 1:
		return Bool(true), 1, nil
	default:
		return nil, 0, malformed(off, "invalid bool byte 0x%02x", b[off])
	}
}

func decodeInteger(_ Decoder, b []byte, off int, _ int) (Value, int, error) {
	if err := need(b, off, 4, "integer"); err != nil {
		return nil, 0, err
	}
	return Integer(byteorder.Int32(b, off)), 4, nil
}

func decodeLong(_ Decoder, b []byte, off int, _ int) (Value, int, error) {
	if err := need(b, off, 8, "long"); err != nil {
		return nil, 0, err
	}
	return Long(byteorder.Int64(b, off)), 8, nil
}

func decodeFloat(_ Decoder, b []byte, off int, _ int) (Value, int, error) {
	if err := need(b, off, 8, "float"); err != nil {
		return nil, 0, err
	}
	return Float(math.Float64frombits(byteorder.Uint64(b, off))), 8, nil
}

// lengthPrefixed returns the payload slice following a u32 length prefix.
func lengthPrefixed(b []byte, off int, what string) ([]byte, int, error) {
	if err := need(b, off, lenPrefix, what+" length"); err != nil {
		return nil, 0, err
	}
	l := byteorder.Uint32(b, off)
	start := off + lenPrefix
	if uint64(l) > uint64(len(b)-start) {
		return nil, 0, malformed(off, "%s length %d exceeds remaining %d bytes", what, l, len(b)-start)
	}
	end := start + int(l)
	return b[start:end], lenPrefix + int(l), nil
}

func decodeString(_ Decoder, b []byte, off int, _ int) (Value, int, error) {
	raw, n, err := lengthPrefixed(b, off, "string")
	if err != nil {
		return nil, 0, err
	}
	return String(raw), n, nil
}

func decodeBytes(_ Decoder, b []byte, off int, _ int) (Value, int, error) {
	raw, n, err := lengthPrefixed(b, off, "bytes")
	if err != nil {
		return nil, 0, err
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return Bytes(out), n, nil
}

// containerCount reads a u32 element count and checks it against limits and
// the smallest possible encoding of that many elements.
func (d Decoder) containerCount(b []byte, off int, depth int, minElem int, what string) (int, error) {
	if depth+1 > d.maxDepth() {
		return 0, malformed(off, "%s nesting exceeds depth %d", what, d.maxDepth())
	}
	if err := need(b, off, lenPrefix, what+" count"); err != nil {
		return 0, err
	}
	count := byteorder.Uint32(b, off)
	if uint64(count) > uint64(d.maxElements()) {
		return 0, malformed(off, "%s count %d exceeds limit %d", what, count, d.maxElements())
	}
	remaining := len(b) - off - lenPrefix
	if uint64(count)*uint64(minElem) > uint64(remaining) {
		return 0, malformed(off, "%s count %d exceeds remaining %d bytes", what, count, remaining)
	}
	return int(count), nil
}

func decodeList(d Decoder, b []byte, off int, depth int) (Value, int, error) {
	count, err := d.containerCount(b, off, depth, tagLen, "list")
	if err != nil {
		return nil, 0, err
	}
	pos := off + lenPrefix
	out := make(List, 0, count)
	for i := 0; i < count; i++ {
		elem, n, err := d.decode(b, pos, depth+1)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, elem)
		pos += n
	}
	return out, pos - off, nil
}

func decodeRecord(d Decoder, b []byte, off int, depth int) (Value, int, error) {
	count, err := d.containerCount(b, off, depth, nameLenField+tagLen, "record")
	if err != nil {
		return nil, 0, err
	}
	pos := off + lenPrefix
	fields := make([]Field, 0, count)
	seen := make(map[string]struct{}, count)
	for i := 0; i < count; i++ {
		if err := need(b, pos, nameLenField, "record field name length"); err != nil {
			return nil, 0, err
		}
		nameLen := int(byteorder.Uint16(b, pos))
		if err := need(b, pos+nameLenField, nameLen, "record field name"); err != nil {
			return nil, 0, err
		}
		name := string(b[pos+nameLenField : pos+nameLenField+nameLen])
		if _, dup := seen[name]; dup {
			return nil, 0, malformed(pos, "duplicate record field %q", name)
		}
		seen[name] = struct{}{}
		pos += nameLenField + nameLen

		elem, n, err := d.decode(b, pos, depth+1)
		if err != nil {
			return nil, 0, err
		}
		fields = append(fields, Field{Name: name, Value: elem})
		pos += n
	}
	return Record{fields: fields}, pos - off, nil
}
