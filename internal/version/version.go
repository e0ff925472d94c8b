// Package version implements the three-component format versions recorded in
// serialized assets.
package version

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/persistorai/assetmig/internal/models"
)

// Version is an immutable major.minor.patch triple ordered lexicographically.
type Version struct {
	Major int
	Minor int
	Patch int
}

// Zero marks an asset that never recorded a version.
var Zero = Version{}

// New returns the version major.minor.patch.
func New(major, minor, patch int) Version {
	return Version{Major: major, Minor: minor, Patch: patch}
}

// Legacy converts the single integer written by old serializers into 0.0.n.
func Legacy(n int) Version {
	return Version{Patch: n}
}

// Parse reads a version written as "a.b.c". Exactly three non-negative integer
// components are required.
func Parse(text string) (Version, error) {
	parts := strings.Split(strings.TrimSpace(text), ".")
	if len(parts) != 3 {
		return Zero, fmt.Errorf("%w: %q has %d components, want 3", models.ErrFormat, text, len(parts))
	}

	var c [3]int
	for i, p := range parts {
		if !isDigits(p) {
			return Zero, fmt.Errorf("%w: component %q of %q is not a plain number", models.ErrFormat, p, text)
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return Zero, fmt.Errorf("%w: component %q of %q is out of range", models.ErrFormat, p, text)
		}
		c[i] = n
	}

	return Version{Major: c[0], Minor: c[1], Patch: c[2]}, nil
}

// MustParse is like Parse but panics on malformed input. Intended for
// static upgrader declarations.
func MustParse(text string) Version {
	v, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return v
}

// Compare returns -1, 0 or +1 depending on whether v sorts before, equal to
// or after o.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major != o.Major:
		return sign(v.Major - o.Major)
	case v.Minor != o.Minor:
		return sign(v.Minor - o.Minor)
	default:
		return sign(v.Patch - o.Patch)
	}
}

func (v Version) Less(o Version) bool           { return v.Compare(o) < 0 }
func (v Version) LessOrEqual(o Version) bool    { return v.Compare(o) <= 0 }
func (v Version) Greater(o Version) bool        { return v.Compare(o) > 0 }
func (v Version) GreaterOrEqual(o Version) bool { return v.Compare(o) >= 0 }

// IsZero reports whether v is the absent version.
func (v Version) IsZero() bool { return v == Zero }

// String formats v as "major.minor.patch".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. On error v is left unchanged.
func (v *Version) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// isDigits reports whether s is a non-empty run of ASCII digits. Signs are
// rejected so that every accepted version prints back the way it was read.
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
