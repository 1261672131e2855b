package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Chris927/dbus-victron-virtual/pkg/variant"
)

// FormatText returns the text representation of v as reported by GetText
// and in the Text field of items. A custom formatter wins. Otherwise nil is
// empty, and numeric types return empty text when the value does not start
// with a parseable number.
func FormatText(d Declaration, v any) string {
	if d.Format != nil {
		return d.Format(v)
	}
	if v == nil {
		return ""
	}

	s := Stringify(v)
	switch d.Type {
	case variant.TypeInt:
		if !hasIntPrefix(s) {
			return ""
		}
	case variant.TypeDouble:
		if !hasFloatPrefix(s) {
			return ""
		}
	}
	return s
}

// Stringify converts a native value to a string. Numbers use the shortest
// representation that round-trips and arrays are joined with commas.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float32:
		return formatNumber(float64(x))
	case float64:
		return formatNumber(x)
	case fmt.Stringer:
		return x.String()
	}

	if n, ok := variant.ToFloat64(v); ok {
		return formatNumber(n)
	}
	if elems, ok := variant.Elems(v); ok {
		parts := make([]string, len(elems))
		for i, e := range elems {
			parts[i] = Stringify(e)
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprint(v)
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	abs := math.Abs(f)
	if abs == 0 || (abs >= 1e-6 && abs < 1e21) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// HexFormat formats integral values as lowercase hexadecimal without a
// prefix, e.g. 49248 as "c060".
func HexFormat(v any) string {
	n, ok := variant.ToFloat64(v)
	if !ok {
		return ""
	}
	return strconv.FormatInt(int64(n), 16)
}

// parseFormat accepts a formatter function or the name of a built-in one.
// Definition files can only name built-ins.
func parseFormat(v any) (func(any) string, error) {
	switch f := v.(type) {
	case func(any) string:
		return f, nil
	case string:
		switch f {
		case "hex":
			return HexFormat, nil
		}
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidDeclaration, f)
	}
	return nil, fmt.Errorf("%w: format must be a func(any) string or a format name", ErrInvalidDeclaration)
}

// ConstFormat returns a formatter that ignores the value.
func ConstFormat(text string) func(any) string {
	return func(any) string { return text }
}

func hasIntPrefix(s string) bool {
	s = strings.TrimLeft(s, " \t\n\r")
	if len(s) > 0 && (s[0] == '+' || s[0] == '-') {
		s = s[1:]
	}
	return len(s) > 0 && isDigit(s[0])
}

func hasFloatPrefix(s string) bool {
	s = strings.TrimLeft(s, " \t\n\r")
	if len(s) > 0 && (s[0] == '+' || s[0] == '-') {
		s = s[1:]
	}
	switch {
	case strings.HasPrefix(s, "Infinity"):
		return true
	case len(s) > 0 && isDigit(s[0]):
		return true
	case len(s) > 1 && s[0] == '.' && isDigit(s[1]):
		return true
	}
	return false
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
