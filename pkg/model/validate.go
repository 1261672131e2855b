package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Chris927/dbus-victron-virtual/pkg/variant"
)

// Validate checks raw against the declaration and returns the value in its
// canonical native form:
//
//	b       bool
//	i       int (floored)
//	d       float64
//	ai      []int
//	ad      []float64
//	as      []string
//	other   string
//
// A nil value is always accepted and returned as nil.
func Validate(name string, d Declaration, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}

	switch d.Type {
	case variant.TypeBool:
		return validateBool(name, raw)

	case variant.TypeInt, variant.TypeDouble:
		return validateNumber(name, d, raw)

	case variant.TypeIntArray:
		elems, err := arrayElems(name, d, raw)
		if err != nil {
			return nil, err
		}
		out := make([]int, len(elems))
		for i, e := range elems {
			n, err := validateNumber(name, d.elem(), e)
			if err != nil {
				return nil, err
			}
			out[i] = n.(int)
		}
		return out, nil

	case variant.TypeDoubleArray:
		elems, err := arrayElems(name, d, raw)
		if err != nil {
			return nil, err
		}
		out := make([]float64, len(elems))
		for i, e := range elems {
			n, err := validateNumber(name, d.elem(), e)
			if err != nil {
				return nil, err
			}
			out[i] = n.(float64)
		}
		return out, nil

	case variant.TypeStringArray:
		elems, err := arrayElems(name, d, raw)
		if err != nil {
			return nil, err
		}
		out := make([]string, len(elems))
		for i, e := range elems {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("%w: value for %s must contain only strings, item %d is %T",
					ErrInvalidValue, name, i, e)
			}
			out[i] = s
		}
		return out, nil

	default:
		// Strings and undeclared types.
		return Stringify(raw), nil
	}
}

func validateBool(name string, raw any) (any, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		switch v {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		}
	default:
		if n, ok := variant.ToFloat64(raw); ok {
			switch n {
			case 1:
				return true, nil
			case 0:
				return false, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: validation failed for %s, type %s: %v", ErrInvalidValue, name, variant.TypeBool, raw)
}

func validateNumber(name string, d Declaration, raw any) (any, error) {
	n, ok := toNumber(raw)
	if !ok {
		return nil, fmt.Errorf("%w: value for %s is not a number", ErrInvalidValue, name)
	}
	if max, ok := variant.ToFloat64(d.Max); ok && n > max {
		return nil, fmt.Errorf("%w: value for %s is too large", ErrInvalidValue, name)
	}
	if min, ok := variant.ToFloat64(d.Min); ok && n < min {
		return nil, fmt.Errorf("%w: value for %s is too small", ErrInvalidValue, name)
	}

	if d.Type != variant.TypeInt {
		return n, nil
	}
	f := math.Floor(n)
	switch {
	case f > math.MaxInt32:
		return nil, fmt.Errorf("%w: value for %s is too large", ErrInvalidValue, name)
	case f < math.MinInt32:
		return nil, fmt.Errorf("%w: value for %s is too small", ErrInvalidValue, name)
	}
	return int(f), nil
}

func arrayElems(name string, d Declaration, raw any) ([]any, error) {
	if _, isString := raw.(string); !isString {
		if elems, ok := variant.Elems(raw); ok {
			return elems, nil
		}
	}
	return nil, fmt.Errorf("%w: value for %s must be an array for type %q", ErrInvalidValue, name, d.Type)
}

// toNumber applies loose numeric coercion: booleans are 0 or 1, strings
// are parsed after trimming and an empty string is 0. NaN and infinities
// are rejected.
func toNumber(raw any) (float64, bool) {
	var n float64
	switch v := raw.(type) {
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		n = f
	default:
		f, ok := variant.ToFloat64(raw)
		if !ok {
			return 0, false
		}
		n = f
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}
