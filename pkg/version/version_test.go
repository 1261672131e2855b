package version

import (
	"testing"
)

func TestParse_Valid(t *testing.T) {
	tests := []struct {
		input string
		want  Version
	}{
		{"1.0.0", Version{1, 0, 0, ""}},
		{"0.1.22", Version{0, 1, 22, ""}},
		{"v2.3.4", Version{2, 3, 4, ""}},
		{"1.2.3-rc1", Version{1, 2, 3, "rc1"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tt.input, err)
			}
			if v != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.input, v, tt.want)
			}
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []string{
		"",
		"1",
		"1.0",
		"abc",
		"1.0.0.0",
		"1..0",
		"1.x.0",
		"70000.0.0",
		"-1.0.0",
	}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			if _, err := Parse(input); err == nil {
				t.Errorf("Parse(%q) should have returned error", input)
			}
		})
	}
}

func TestVersion_String(t *testing.T) {
	if got := (Version{Major: 1, Minor: 2, Patch: 3}).String(); got != "1.2.3" {
		t.Errorf("String() = %q, want %q", got, "1.2.3")
	}
	if got := (Version{Major: 1, PreRelease: "beta"}).String(); got != "1.0.0-beta" {
		t.Errorf("String() = %q, want %q", got, "1.0.0-beta")
	}
}

func TestVersion_Compare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.0", "1.0.1", -1},
		{"1.2.0", "1.1.9", 1},
		{"2.0.0", "10.0.0", -1},
		{"1.0.0-rc1", "1.0.0", 0},
	}

	for _, tt := range tests {
		a, _ := Parse(tt.a)
		b, _ := Parse(tt.b)
		if got := a.Compare(b); got != tt.want {
			t.Errorf("%s.Compare(%s) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestVersion_Compatible(t *testing.T) {
	a, _ := Parse("1.0.0")
	b, _ := Parse("1.9.3")
	c, _ := Parse("2.0.0")

	if !a.Compatible(b) {
		t.Error("1.0.0 should be compatible with 1.9.3")
	}
	if a.Compatible(c) {
		t.Error("1.0.0 should not be compatible with 2.0.0")
	}
}

func TestCurrent_Parses(t *testing.T) {
	if _, err := Parse(Current); err != nil {
		t.Errorf("Current %q does not parse: %v", Current, err)
	}
	if ProcessName == "" {
		t.Error("ProcessName is empty")
	}
}
