package room

import "testing"

func TestValueEqualIsByteEqualityNotSemanticEquality(t *testing.T) {
	a := NewValue([]byte(`{"a":1,"b":2}`))
	b := NewValue([]byte(`{"b":2,"a":1}`)) // same JSON object, different byte order
	if a.Equal(b) {
		t.Fatalf("expected byte-different-but-semantically-equal JSON to compare unequal")
	}

	c := NewValue([]byte(`{"a":1,"b":2}`))
	if !a.Equal(c) {
		t.Fatalf("expected byte-identical JSON to compare equal")
	}
}

func TestValueMarshalUnmarshalRoundTrips(t *testing.T) {
	v := NewValue([]byte(`{"x":[1,2,3]}`))
	data, err := v.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got Value
	if err := got.UnmarshalJSON(data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !got.Equal(v) {
		t.Fatalf("round trip changed bytes: got %s, want %s", got.Bytes(), v.Bytes())
	}
}

func TestValueMutatingInputBytesDoesNotAffectStoredValue(t *testing.T) {
	raw := []byte(`1`)
	v := NewValue(raw)
	raw[0] = '2'
	if string(v.Bytes()) != "1" {
		t.Fatalf("expected Value to own a copy of its bytes, got %s", v.Bytes())
	}
}
