package domain

import (
	"bytes"
	"fmt"
	"math"
)

// Type identifies the variant held by a Value.
//
// The numeric values double as type tags in the binary export format and
// must not be renumbered.
type Type uint8

const (
	TypeUnspecified Type = iota
	TypeI32
	TypeU32
	TypeI64
	TypeFloat
	TypeBool
	TypeStr
	TypeBlob
)

var typeNames = [...]string{
	TypeUnspecified: "unspecified",
	TypeI32:         "i32",
	TypeU32:         "u32",
	TypeI64:         "i64",
	TypeFloat:       "float",
	TypeBool:        "bool",
	TypeStr:         "str",
	TypeBlob:        "blob",
}

// String returns the type name used in JSON exports.
func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// Valid reports whether t names a storable variant.
func (t Type) Valid() bool {
	return t >= TypeI32 && t <= TypeBlob
}

// ParseType resolves a JSON type name.
func ParseType(name string) (Type, bool) {
	for t := TypeI32; t <= TypeBlob; t++ {
		if typeNames[t] == name {
			return t, true
		}
	}
	return TypeUnspecified, false
}

// Value is a configuration value. It is a closed set: only the variants
// declared in this package implement it.
type Value interface {
	Type() Type
	isValue()
}

type (
	I32   int32
	U32   uint32
	I64   int64
	Float float32
	Bool  bool
	Str   string
	Blob  []byte
)

func (I32) Type() Type   { return TypeI32 }
func (U32) Type() Type   { return TypeU32 }
func (I64) Type() Type   { return TypeI64 }
func (Float) Type() Type { return TypeFloat }
func (Bool) Type() Type  { return TypeBool }
func (Str) Type() Type   { return TypeStr }
func (Blob) Type() Type  { return TypeBlob }

func (I32) isValue()   {}
func (U32) isValue()   {}
func (I64) isValue()   {}
func (Float) isValue() {}
func (Bool) isValue()  {}
func (Str) isValue()   {}
func (Blob) isValue()  {}

// Clone returns a copy of v that shares no memory with it.
func Clone(v Value) Value {
	if b, ok := v.(Blob); ok {
		if b == nil {
			return Blob(nil)
		}
		return Blob(bytes.Clone(b))
	}
	return v
}

// Payload returns the byte payload of a Str or Blob value, or nil for scalars.
func Payload(v Value) []byte {
	switch x := v.(type) {
	case Str:
		return []byte(x)
	case Blob:
		return x
	default:
		return nil
	}
}

// WithPayload builds a Str or Blob of type t around data.
func WithPayload(t Type, data []byte) (Value, error) {
	switch t {
	case TypeStr:
		return Str(data), nil
	case TypeBlob:
		return Blob(bytes.Clone(data)), nil
	default:
		return nil, ErrTypeMismatch.WithDetails("payload requires str or blob, got " + t.String())
	}
}

// Equal reports whether a and b hold the same variant and bit-identical content.
// Floats compare by bit pattern so NaN equals itself.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Type() != b.Type() {
		return false
	}
	switch x := a.(type) {
	case Float:
		return math.Float32bits(float32(x)) == math.Float32bits(float32(b.(Float)))
	case Blob:
		return bytes.Equal(x, b.(Blob))
	default:
		return a == b
	}
}
