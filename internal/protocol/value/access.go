package value

// AsBool returns v as a bool.
func AsBool(v Value) (bool, error) {
	b, ok := v.(Bool)
	if !ok {
		return false, kindMismatch(v, KindBool)
	}
	return bool(b), nil
}

// AsInt32 returns v as an int32.
func AsInt32(v Value) (int32, error) {
	i, ok := v.(Integer)
	if !ok {
		return 0, kindMismatch(v, KindInteger)
	}
	return int32(i), nil
}

// AsInt64 returns v as an int64. Integer values widen.
func AsInt64(v Value) (int64, error) {
	switch n := v.(type) {
	case Long:
		return int64(n), nil
	case Integer:
		return int64(n), nil
	default:
		return 0, kindMismatch(v, KindLong)
	}
}

// AsFloat returns v as a float64.
func AsFloat(v Value) (float64, error) {
	f, ok := v.(Float)
	if !ok {
		return 0, kindMismatch(v, KindFloat)
	}
	return float64(f), nil
}

// AsString returns v as a string.
func AsString(v Value) (string, error) {
	s, ok := v.(String)
	if !ok {
		return "", kindMismatch(v, KindString)
	}
	return string(s), nil
}

// AsBytes returns a copy of v's bytes.
func AsBytes(v Value) ([]byte, error) {
	b, ok := v.(Bytes)
	if !ok {
		return nil, kindMismatch(v, KindBytes)
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// AsList returns v as a list.
func AsList(v Value) (List, error) {
	l, ok := v.(List)
	if !ok {
		return nil, kindMismatch(v, KindList)
	}
	return l, nil
}

// AsRecord returns v as a record.
func AsRecord(v Value) (Record, error) {
	r, ok := v.(Record)
	if !ok {
		return Record{}, kindMismatch(v, KindRecord)
	}
	return r, nil
}
