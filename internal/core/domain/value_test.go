package domain

import (
	"math"
	"testing"
)

func TestType_NamesRoundTrip(t *testing.T) {
	for typ := TypeI32; typ <= TypeBlob; typ++ {
		got, ok := ParseType(typ.String())
		if !ok || got != typ {
			t.Errorf("ParseType(%q) = %v, %v", typ.String(), got, ok)
		}
	}
	if _, ok := ParseType("unspecified"); ok {
		t.Error("unspecified must not parse")
	}
	if TypeUnspecified.Valid() || Type(42).Valid() {
		t.Error("Valid() accepted a non-storable type")
	}
}

func TestValue_Types(t *testing.T) {
	tests := []struct {
		v    Value
		want Type
	}{
		{I32(-1), TypeI32},
		{U32(1), TypeU32},
		{I64(1 << 40), TypeI64},
		{Float(1.5), TypeFloat},
		{Bool(true), TypeBool},
		{Str("x"), TypeStr},
		{Blob{1}, TypeBlob},
	}
	for _, tt := range tests {
		if got := tt.v.Type(); got != tt.want {
			t.Errorf("%#v.Type() = %v, want %v", tt.v, got, tt.want)
		}
	}
}

func TestClone_BlobIsolated(t *testing.T) {
	orig := Blob{1, 2, 3}
	c := Clone(orig).(Blob)
	c[0] = 9
	if orig[0] != 1 {
		t.Error("Clone shares memory with the original blob")
	}
	if Clone(I32(7)) != I32(7) {
		t.Error("Clone changed a scalar")
	}
}

func TestEqual(t *testing.T) {
	nan := Float(float32(math.NaN()))
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"same scalar", I32(5), I32(5), true},
		{"different variant", I32(5), U32(5), false},
		{"nan bits", nan, nan, true},
		{"negative zero", Float(0), Float(float32(math.Copysign(0, -1))), false},
		{"blob", Blob{1, 2}, Blob{1, 2}, true},
		{"blob differs", Blob{1, 2}, Blob{1}, false},
		{"both nil", nil, nil, true},
		{"one nil", nil, Str(""), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.a, tt.b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWithPayload(t *testing.T) {
	v, err := WithPayload(TypeStr, []byte("hi"))
	if err != nil || v != Str("hi") {
		t.Fatalf("WithPayload(str) = %v, %v", v, err)
	}
	src := []byte{1, 2}
	v, err = WithPayload(TypeBlob, src)
	if err != nil {
		t.Fatalf("WithPayload(blob): %v", err)
	}
	src[0] = 9
	if v.(Blob)[0] != 1 {
		t.Error("WithPayload(blob) aliases its input")
	}
	if _, err := WithPayload(TypeI32, nil); StatusOf(err) != StatusTypeMismatch {
		t.Errorf("WithPayload(i32) err = %v", err)
	}
	if Payload(I32(1)) != nil {
		t.Error("Payload of scalar should be nil")
	}
}
