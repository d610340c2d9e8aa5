package selector

import (
	"strings"
)

// Version is a dotted numeric backend version. Parts records how many
// components were written, so "1.2" can be told apart from "1.2.0".
type Version struct {
	Major uint32
	Minor uint32
	Patch uint32
	Parts int
}

// ParseVersion parses a version string like "1.3.0", "1.3" or "1".
// Underscores are accepted in place of dots ("1_3_0").
func ParseVersion(s string) (Version, bool) {
	if s == "" {
		return Version{}, false
	}

	var v Version
	parts := strings.Split(strings.ReplaceAll(s, "_", "."), ".")
	if len(parts) > 3 {
		return Version{}, false
	}

	for i, p := range parts {
		if p == "" {
			return Version{}, false
		}
		var n uint32
		for _, c := range p {
			if c < '0' || c > '9' {
				return Version{}, false
			}
			// Check for overflow before multiplication
			if n > 429496729 || (n == 429496729 && c > '5') {
				return Version{}, false
			}
			n = n*10 + uint32(c-'0')
		}
		switch i {
		case 0:
			v.Major = n
		case 1:
			v.Minor = n
		case 2:
			v.Patch = n
		}
	}
	v.Parts = len(parts)
	return v, true
}

// Full reports whether all three components were given.
func (v Version) Full() bool {
	return v.Parts == 3
}

// Compatible returns true if v is semver-compatible with want.
// Compatible means same major, and v >= want
func (v Version) Compatible(want Version) bool {
	if v.Major != want.Major {
		return false
	}
	if v.Minor < want.Minor {
		return false
	}
	if v.Minor == want.Minor && v.Patch < want.Patch {
		return false
	}
	return true
}

// Matches reports whether v falls under the partial version want: every
// component want spells out must be equal.
func (v Version) Matches(want Version) bool {
	switch want.Parts {
	case 3:
		return v.Major == want.Major && v.Minor == want.Minor && v.Patch == want.Patch
	case 2:
		return v.Major == want.Major && v.Minor == want.Minor
	case 1:
		return v.Major == want.Major
	}
	return false
}

// Less orders versions numerically.
func (v Version) Less(o Version) bool {
	if v.Major != o.Major {
		return v.Major < o.Major
	}
	if v.Minor != o.Minor {
		return v.Minor < o.Minor
	}
	return v.Patch < o.Patch
}

// String returns the version as "major.minor.patch"
func (v Version) String() string {
	return strings.Join([]string{
		uintToStr(v.Major),
		uintToStr(v.Minor),
		uintToStr(v.Patch),
	}, ".")
}

// Safe returns the version with underscores, "1_3_0", usable in symbol
// and file names.
func (v Version) Safe() string {
	return strings.ReplaceAll(v.String(), ".", "_")
}

// SafeVersion converts "1.3.0" to "1_3_0". Strings that do not parse are
// converted character by character.
func SafeVersion(s string) string {
	if v, ok := ParseVersion(s); ok && v.Full() {
		return v.Safe()
	}
	return strings.ReplaceAll(s, ".", "_")
}

// FromSafeVersion converts "1_3_0" back to "1.3.0".
func FromSafeVersion(s string) string {
	if v, ok := ParseVersion(s); ok && v.Full() {
		return v.String()
	}
	return strings.ReplaceAll(s, "_", ".")
}

func uintToStr(n uint32) string {
	if n == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
