package variant

import (
	"errors"
	"fmt"
)

// Codec errors.
var (
	ErrEncode = errors.New("cannot encode value")
	ErrDecode = errors.New("cannot decode value")
	ErrInfer  = errors.New("cannot infer type")
)

// Type is a D-Bus type signature used as a variant tag.
type Type string

const (
	// TypeUndeclared means no type was declared; values pass through raw.
	TypeUndeclared Type = ""

	TypeBool        Type = "b"
	TypeString      Type = "s"
	TypeInt         Type = "i"
	TypeDouble      Type = "d"
	TypeIntArray    Type = "ai"
	TypeDoubleArray Type = "ad"
	TypeStringArray Type = "as"
)

// IsArray returns true for array signatures ("a" followed by a child type).
func (t Type) IsArray() bool {
	return len(t) > 1 && t[0] == 'a'
}

// Child returns the element type of an array signature, or TypeUndeclared.
func (t Type) Child() Type {
	if !t.IsArray() {
		return TypeUndeclared
	}
	return t[1:]
}

// IsNumeric returns true for "i" and "d".
func (t Type) IsNumeric() bool {
	return t == TypeInt || t == TypeDouble
}

// Known returns true if t is one of the tags this package encodes.
func (t Type) Known() bool {
	switch t {
	case TypeBool, TypeString, TypeInt, TypeDouble, TypeIntArray, TypeDoubleArray, TypeStringArray:
		return true
	default:
		return false
	}
}

// String returns the signature.
func (t Type) String() string {
	return string(t)
}

// Variant is a tagged value as carried on the bus.
type Variant struct {
	// Type is the signature of Value. TypeUndeclared means the transport
	// infers the signature from the Go type of Value.
	Type Type

	// Value is the payload.
	Value any
}

// New returns a Variant without checking that v matches t.
func New(t Type, v any) Variant {
	return Variant{Type: t, Value: v}
}

// Null returns the null encoding: an empty integer array.
func Null() Variant {
	return Variant{Type: TypeIntArray, Value: []int32{}}
}

// IsNull reports whether v is the null encoding.
func (v Variant) IsNull() bool {
	if v.Type != TypeIntArray {
		return false
	}
	elems, ok := Elems(v.Value)
	return ok && len(elems) == 0
}

// String returns a debug representation such as [i 42].
func (v Variant) String() string {
	return fmt.Sprintf("[%s %v]", v.Type, v.Value)
}

type undefined struct{}

// Undefined marks a value that was never provided. It differs from nil,
// which is the null value. InferType rejects it.
var Undefined any = undefined{}
