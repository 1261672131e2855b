package model

import (
	"testing"

	"github.com/Chris927/dbus-victron-virtual/pkg/variant"
)

func TestFormatText(t *testing.T) {
	tests := []struct {
		name string
		d    Declaration
		v    any
		want string
	}{
		{"Nil", Declaration{Type: variant.TypeString}, nil, ""},
		{"String", Declaration{Type: variant.TypeString}, "hello", "hello"},
		{"Int", Declaration{Type: variant.TypeInt}, 42, "42"},
		{"NegativeInt", Declaration{Type: variant.TypeInt}, -3, "-3"},
		{"IntNotNumeric", Declaration{Type: variant.TypeInt}, "abc", ""},
		{"IntNumericPrefix", Declaration{Type: variant.TypeInt}, "12abc", "12abc"},
		{"Double", Declaration{Type: variant.TypeDouble}, 3.14, "3.14"},
		{"DoubleIntegral", Declaration{Type: variant.TypeDouble}, 3.0, "3"},
		{"DoubleLeadingDot", Declaration{Type: variant.TypeDouble}, ".5", ".5"},
		{"DoubleNotNumeric", Declaration{Type: variant.TypeDouble}, "n/a", ""},
		{"Bool", Declaration{Type: variant.TypeBool}, true, "true"},
		{"Array", Declaration{Type: variant.TypeDoubleArray}, []float64{1, 2.5}, "1,2.5"},
		{"Undeclared", Declaration{}, 12, "12"},
		{"Custom", Declaration{Type: variant.TypeInt, Format: HexFormat}, 0xc060, "c060"},
		{"CustomOnNil", Declaration{Format: ConstFormat("n/a")}, nil, "n/a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatText(tt.d, tt.v); got != tt.want {
				t.Errorf("FormatText(%v) = %q, want %q", tt.v, got, tt.want)
			}
		})
	}
}

func TestStringifyNumbers(t *testing.T) {
	tests := []struct {
		v    any
		want string
	}{
		{0.1, "0.1"},
		{1e21, "1e+21"},
		{100.0, "100"},
		{float32(0.5), "0.5"},
		{uint16(7), "7"},
		{int64(-9), "-9"},
	}
	for _, tt := range tests {
		if got := Stringify(tt.v); got != tt.want {
			t.Errorf("Stringify(%v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}
