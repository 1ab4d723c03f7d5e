package value

import (
	"fmt"
	"sort"
)

// Kind is the 2-byte discriminant written ahead of every value.
type Kind uint16

const (
	KindVoid    Kind = 0x0000
	KindBool    Kind = 0x0001
	KindInteger Kind = 0x0002
	KindLong    Kind = 0x0003
	KindFloat   Kind = 0x0004
	KindString  Kind = 0x0005
	KindBytes   Kind = 0x0006
	KindList    Kind = 0x0007
	KindRecord  Kind = 0x0008
)

// decodeFunc decodes the payload starting at off and reports payload bytes consumed.
type decodeFunc func(d Decoder, b []byte, off int, depth int) (Value, int, error)

type kindInfo struct {
	name   string
	decode decodeFunc
}

// registry is the single tag table; populated in init because the container
// decoders recurse back through it.
var registry map[Kind]kindInfo

func init() {
	registry = map[Kind]kindInfo{
		KindVoid:    {name: "void", decode: decodeVoid},
		KindBool:    {name: "bool", decode: decodeBool},
		KindInteger: {name: "integer", decode: decodeInteger},
		KindLong:    {name: "long", decode: decodeLong},
		KindFloat:   {name: "float", decode: decodeFloat},
		KindString:  {name: "string", decode: decodeString},
		KindBytes:   {name: "bytes", decode: decodeBytes},
		KindList:    {name: "list", decode: decodeList},
		KindRecord:  {name: "record", decode: decodeRecord},
	}
}

func (k Kind) String() string {
	if info, ok := registry[k]; ok {
		return info.name
	}
	return fmt.Sprintf("kind(0x%04x)", uint16(k))
}

// Known reports whether k is part of the registered enumeration.
func (k Kind) Known() bool {
	_, ok := registry[k]
	return ok
}

// Kinds returns every registered kind in tag order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func kindOf(v Value) Kind {
	if v == nil {
		return KindVoid
	}
	return v.Kind()
}
