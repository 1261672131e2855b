package variant

import (
	"fmt"
	"math"
	"reflect"
)

// Typed is implemented by declarations that carry a type tag.
type Typed interface {
	VariantType() Type
}

// EncodeAs encodes v using the type carried by a declaration.
func EncodeAs(d Typed, v any) (Variant, error) {
	return Encode(d.VariantType(), v)
}

// Encode converts a native value to its wire form for the declared type.
// A nil value always encodes as Null. An undeclared or unknown type passes
// the value through unencoded.
func Encode(t Type, v any) (Variant, error) {
	if v == nil {
		return Null(), nil
	}

	switch t {
	case TypeBool:
		b, ok := v.(bool)
		if !ok {
			return Variant{}, fmt.Errorf("%w: %v (%T) is not a boolean", ErrEncode, v, v)
		}
		return Variant{Type: t, Value: b}, nil

	case TypeString:
		s, ok := v.(string)
		if !ok {
			return Variant{}, fmt.Errorf("%w: %v (%T) is not a string", ErrEncode, v, v)
		}
		return Variant{Type: t, Value: s}, nil

	case TypeInt:
		n, ok := ToFloat64(v)
		if !ok || !FitsInt32(n) {
			return Variant{}, fmt.Errorf("%w: %v (%T) is not a 32-bit integer", ErrEncode, v, v)
		}
		return Variant{Type: t, Value: int32(n)}, nil

	case TypeDouble:
		n, ok := ToFloat64(v)
		if !ok {
			return Variant{}, fmt.Errorf("%w: %v (%T) is not a number", ErrEncode, v, v)
		}
		return Variant{Type: t, Value: n}, nil

	case TypeDoubleArray:
		elems, ok := Elems(v)
		if !ok {
			return Variant{}, fmt.Errorf("%w: value must be an array for type %q", ErrEncode, t)
		}
		out := make([]float64, len(elems))
		for i, e := range elems {
			n, ok := ToFloat64(e)
			if !ok {
				return Variant{}, fmt.Errorf("%w: all items in array must be numbers for type %q", ErrEncode, t)
			}
			out[i] = n
		}
		return Variant{Type: t, Value: out}, nil

	case TypeIntArray:
		elems, ok := Elems(v)
		if !ok {
			return Variant{}, fmt.Errorf("%w: value must be an array for type %q", ErrEncode, t)
		}
		out := make([]int32, len(elems))
		for i, e := range elems {
			n, ok := ToFloat64(e)
			if !ok || !FitsInt32(n) {
				return Variant{}, fmt.Errorf("%w: all items in array must be integers for type %q", ErrEncode, t)
			}
			out[i] = int32(n)
		}
		return Variant{Type: t, Value: out}, nil

	case TypeStringArray:
		elems, ok := Elems(v)
		if !ok {
			return Variant{}, fmt.Errorf("%w: value must be an array for type %q", ErrEncode, t)
		}
		out := make([]string, len(elems))
		for i, e := range elems {
			s, ok := e.(string)
			if !ok {
				return Variant{}, fmt.Errorf("%w: all items in array must be strings for type %q", ErrEncode, t)
			}
			out[i] = s
		}
		return Variant{Type: t, Value: out}, nil

	default:
		return Variant{Type: TypeUndeclared, Value: v}, nil
	}
}

// Decode converts a wire variant to a native value.
func Decode(v Variant) (any, error) {
	switch v.Type {
	case TypeBool:
		return truthy(v.Value), nil

	case TypeString:
		s, ok := v.Value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: string variant carries %T", ErrDecode, v.Value)
		}
		return s, nil

	case TypeInt:
		n, ok := ToFloat64(v.Value)
		if !ok {
			return nil, fmt.Errorf("%w: integer variant carries %T", ErrDecode, v.Value)
		}
		return int(n), nil

	case TypeDouble:
		n, ok := ToFloat64(v.Value)
		if !ok {
			return nil, fmt.Errorf("%w: double variant carries %T", ErrDecode, v.Value)
		}
		return n, nil

	case TypeDoubleArray:
		elems, ok := Elems(v.Value)
		if !ok {
			return nil, fmt.Errorf("%w: array variant carries %T", ErrDecode, v.Value)
		}
		out := make([]float64, len(elems))
		for i, e := range elems {
			n, ok := ToFloat64(e)
			if !ok {
				return nil, fmt.Errorf("%w: all items in double array must be numbers", ErrDecode)
			}
			out[i] = n
		}
		return out, nil

	case TypeStringArray:
		elems, ok := Elems(v.Value)
		if !ok {
			return nil, fmt.Errorf("%w: array variant carries %T", ErrDecode, v.Value)
		}
		out := make([]string, len(elems))
		for i, e := range elems {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("%w: all items in string array must be strings", ErrDecode)
			}
			out[i] = s
		}
		return out, nil

	case TypeIntArray:
		if v.IsNull() {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: unsupported value type %q, only supported as empty array", ErrDecode, v.Type)
	}

	if v.Type.IsArray() {
		return nil, fmt.Errorf("%w: array value with child type %q, only an empty %q array is supported to represent null",
			ErrDecode, v.Type.Child(), TypeInt)
	}
	return nil, fmt.Errorf("%w: unsupported value type: %q", ErrDecode, v.Type)
}

// InferType returns the type tag for an untyped native value. Null has no
// intrinsic type and is tagged as a double.
func InferType(v any) (Type, error) {
	if v == nil {
		return TypeDouble, nil
	}
	if v == Undefined {
		return TypeUndeclared, fmt.Errorf("%w: value cannot be undefined", ErrInfer)
	}

	switch n := v.(type) {
	case string:
		return TypeString, nil
	case float32, float64:
		f, _ := ToFloat64(n)
		if math.IsNaN(f) {
			return TypeUndeclared, fmt.Errorf("%w: NaN is not a valid input", ErrInfer)
		}
		if IsIntegral(f) {
			return TypeInt, nil
		}
		return TypeDouble, nil
	}

	if _, ok := ToFloat64(v); ok {
		return TypeInt, nil
	}
	return TypeUndeclared, fmt.Errorf("%w: unsupported type: %s", ErrInfer, reflect.TypeOf(v).Kind())
}

// truthy mirrors loose boolean coercion: zero values are false.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	}
	if n, ok := ToFloat64(v); ok {
		return n != 0 && !math.IsNaN(n)
	}
	return true
}
