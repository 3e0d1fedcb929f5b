package room

import (
	"bytes"
	"encoding/json"
)

// Value is an opaque structured datum (object, array, string, number,
// boolean, or null). The store never interprets it; it is carried as
// canonical JSON bytes, which doubles as its equality representation.
type Value struct {
	raw json.RawMessage
}

// NewValue wraps raw JSON bytes as a Value. The bytes are copied.
func NewValue(raw []byte) Value {
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return Value{raw: cp}
}

// Bytes returns the canonical JSON encoding of the value. Callers must not
// mutate the returned slice.
func (v Value) Bytes() []byte {
	if v.raw == nil {
		return []byte("null")
	}
	return v.raw
}

// Equal reports whether two values are byte-equal once serialized. It does
// not attempt semantic JSON equality: key order or whitespace differences
// are treated as distinct values.
func (v Value) Equal(other Value) bool {
	return bytes.Equal(v.Bytes(), other.Bytes())
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.raw == nil {
		return []byte("null"), nil
	}
	return v.raw, nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	v.raw = cp
	return nil
}
