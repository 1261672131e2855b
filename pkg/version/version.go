// Package version provides the process identity published under Mgmt/ and
// semantic version parsing.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// ProcessName is published as Mgmt/ProcessName.
const ProcessName = "dbus-victron-virtual"

// Current is published as Mgmt/ProcessVersion. Release builds override it
// with -ldflags "-X .../pkg/version.Current=x.y.z".
var Current = "0.1.22"

// Version is a parsed "major.minor.patch" version. A pre-release suffix
// ("-rc1") is kept but not compared.
type Version struct {
	Major      uint16
	Minor      uint16
	Patch      uint16
	PreRelease string
}

// Parse parses a "major.minor.patch" version string with an optional "v"
// prefix and pre-release suffix.
func Parse(s string) (Version, error) {
	body := strings.TrimPrefix(s, "v")
	body, pre, _ := strings.Cut(body, "-")

	parts := strings.Split(body, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("invalid version %q: expected major.minor.patch", s)
	}

	var nums [3]uint16
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil || p == "" {
			return Version{}, fmt.Errorf("invalid version %q: bad component %q", s, p)
		}
		nums[i] = uint16(n)
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2], PreRelease: pre}, nil
}

// String returns the version as "major.minor.patch[-pre]".
func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.PreRelease != "" {
		s += "-" + v.PreRelease
	}
	return s
}

// Compare returns -1, 0 or +1 comparing v to other by major, minor and
// patch.
func (v Version) Compare(other Version) int {
	for _, d := range [][2]uint16{{v.Major, other.Major}, {v.Minor, other.Minor}, {v.Patch, other.Patch}} {
		switch {
		case d[0] < d[1]:
			return -1
		case d[0] > d[1]:
			return 1
		}
	}
	return 0
}

// Compatible returns true if the other version has the same major version.
func (v Version) Compatible(other Version) bool {
	return v.Major == other.Major
}
