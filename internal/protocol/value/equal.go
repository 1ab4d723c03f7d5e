package value

import (
	"bytes"
	"math"
)

// Equal reports whether a and b have the same kind and payload. Floats are
// compared by bit pattern so NaN payloads survive the round trip.
func Equal(a, b Value) bool {
	if a == nil {
		a = Void{}
	}
	if b == nil {
		b = Void{}
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Void:
		return true
	case Bool:
		return av == b.(Bool)
	case Integer:
		return av == b.(Integer)
	case Long:
		return av == b.(Long)
	case Float:
		return math.Float64bits(float64(av)) == math.Float64bits(float64(b.(Float)))
	case String:
		return av == b.(String)
	case Bytes:
		return bytes.Equal(av, b.(Bytes))
	case List:
		bv := b.(List)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Record:
		bv := b.(Record)
		if len(av.fields) != len(bv.fields) {
			return false
		}
		for i := range av.fields {
			if av.fields[i].Name != bv.fields[i].Name {
				return false
			}
			if !Equal(av.fields[i].Value, bv.fields[i].Value) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
