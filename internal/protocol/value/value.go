package value

import (
	"encoding/hex"
	"math"
	"strconv"
	"strings"
)

// Value is one tagged protocol value. The set of implementations is closed.
type Value interface {
	Kind() Kind
	String() string

	payloadLen() int
	appendPayload(dst []byte) []byte
}

type (
	Void    struct{}
	Bool    bool
	Integer int32
	Long    int64
	Float   float64
	String  string
	Bytes   []byte
	List    []Value
)

// Field is one named member of a Record.
type Field struct {
	Name  string
	Value Value
}

// Record is an ordered set of uniquely named fields.
type Record struct {
	fields []Field
}

const (
	tagLen       = 2
	lenPrefix    = 4
	nameLenField = 2
)

func (Void) Kind() Kind    { return KindVoid }
func (Bool) Kind() Kind    { return KindBool }
func (Integer) Kind() Kind { return KindInteger }
func (Long) Kind() Kind    { return KindLong }
func (Float) Kind() Kind   { return KindFloat }
func (String) Kind() Kind  { return KindString }
func (Bytes) Kind() Kind   { return KindBytes }
func (List) Kind() Kind    { return KindList }
func (Record) Kind() Kind  { return KindRecord }

func (Void) String() string { return "void" }

func (v Bool) String() string { return strconv.FormatBool(bool(v)) }

func (v Integer) String() string { return strconv.FormatInt(int64(v), 10) }

func (v Long) String() string { return strconv.FormatInt(int64(v), 10) + "L" }

func (v Float) String() string { return strconv.FormatFloat(float64(v), 'g', -1, 64) }

func (v String) String() string { return strconv.Quote(string(v)) }

func (v Bytes) String() string { return "0x" + hex.EncodeToString(v) }

func (v List) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, elem := range v {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(Display(elem))
	}
	sb.WriteByte(']')
	return sb.String()
}

func (v Record) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, f := range v.fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(f.Name)
		sb.WriteString(": ")
		sb.WriteString(Display(f.Value))
	}
	sb.WriteByte('}')
	return sb.String()
}

// Display renders v for logs and inspection. The output is never parsed back.
func Display(v Value) string {
	if v == nil {
		return Void{}.String()
	}
	return v.String()
}

// NewRecord builds a record, rejecting duplicate or oversized field names.
func NewRecord(fields ...Field) (Record, error) {
	seen := make(map[string]struct{}, len(fields))
	out := make([]Field, 0, len(fields))
	for _, f := range fields {
		if len(f.Name) > math.MaxUint16 {
			return Record{}, ErrFieldNameTooLong
		}
		if _, ok := seen[f.Name]; ok {
			return Record{}, ErrDuplicateField
		}
		seen[f.Name] = struct{}{}
		if f.Value == nil {
			f.Value = Void{}
		}
		out = append(out, f)
	}
	return Record{fields: out}, nil
}

// MustRecord is NewRecord for literal field sets known to be valid.
func MustRecord(fields ...Field) Record {
	r, err := NewRecord(fields...)
	if err != nil {
		panic(err)
	}
	return r
}

// Fields returns a copy of the record fields in order.
func (v Record) Fields() []Field {
	out := make([]Field, len(v.fields))
	copy(out, v.fields)
	return out
}

// Get returns the named field value.
func (v Record) Get(name string) (Value, bool) {
	for _, f := range v.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

func (v Record) Len() int {
	return len(v.fields)
}
