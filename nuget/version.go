package nuget

import (
	"slices"
	"strconv"
	"strings"
)

// Version is a NuGet package version: up to four numeric segments, an optional
// pre-release label and optional build metadata.
type Version struct {
	Major      int
	Minor      int
	Patch      int
	Revision   int    // 4th segment for NuGet-style versions (e.g. 1.2.3.4)
	PreRelease string // e.g. "beta.1", "rc.2"
	Build      string // build metadata after '+', ignored for precedence
	Raw        string
}

// ParseVersion parses leniently: missing or non-numeric segments become zero.
// Use TryParseVersion when the input must be validated.
func ParseVersion(s string) Version {
	raw := s
	build := ""
	pre := ""

	if idx := strings.IndexByte(s, '+'); idx != -1 {
		build = s[idx+1:]
		s = s[:idx]
	}
	if idx := strings.IndexByte(s, '-'); idx != -1 {
		pre = s[idx+1:]
		s = s[:idx]
	}

	parts := strings.Split(s, ".")
	intAt := func(i int) int {
		if i >= len(parts) {
			return 0
		}
		n, _ := strconv.Atoi(parts[i])
		return n
	}
	return Version{
		Major:      intAt(0),
		Minor:      intAt(1),
		Patch:      intAt(2),
		Revision:   intAt(3),
		PreRelease: pre,
		Build:      build,
		Raw:        raw,
	}
}

// TryParseVersion accepts what NuGet accepts as a version string: one to four
// dot-separated non-negative integers, an optional "-" release label made of
// dot-separated alphanumeric/hyphen identifiers, and optional "+" metadata.
func TryParseVersion(s string) (Version, bool) {
	if s == "" || strings.TrimSpace(s) != s {
		return Version{}, false
	}
	core := s
	if idx := strings.IndexByte(core, '+'); idx != -1 {
		if !validLabel(core[idx+1:]) {
			return Version{}, false
		}
		core = core[:idx]
	}
	if idx := strings.IndexByte(core, '-'); idx != -1 {
		if !validLabel(core[idx+1:]) {
			return Version{}, false
		}
		core = core[:idx]
	}
	parts := strings.Split(core, ".")
	if len(parts) > 4 {
		return Version{}, false
	}
	for _, p := range parts {
		if p == "" {
			return Version{}, false
		}
		if _, err := strconv.ParseUint(p, 10, 31); err != nil {
			return Version{}, false
		}
	}
	return ParseVersion(s), true
}

func validLabel(label string) bool {
	if label == "" {
		return false
	}
	for _, id := range strings.Split(label, ".") {
		if id == "" {
			return false
		}
		for _, r := range id {
			isAlnum := (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
			if !isAlnum && r != '-' {
				return false
			}
		}
	}
	return true
}

// Compare orders versions by NuGet precedence. Build metadata is ignored and
// release labels compare case-insensitively.
func (v Version) Compare(other Version) int {
	for _, d := range [...][2]int{
		{v.Major, other.Major},
		{v.Minor, other.Minor},
		{v.Patch, other.Patch},
		{v.Revision, other.Revision},
	} {
		if d[0] != d[1] {
			if d[0] > d[1] {
				return 1
			}
			return -1
		}
	}
	// Stable > pre-release
	switch {
	case v.PreRelease == "" && other.PreRelease == "":
		return 0
	case v.PreRelease == "":
		return 1
	case other.PreRelease == "":
		return -1
	}
	return comparePreRelease(v.PreRelease, other.PreRelease)
}

// IsNewerThan returns true if v is strictly newer than other.
func (v Version) IsNewerThan(other Version) bool { return v.Compare(other) > 0 }

// Equal reports precedence equality, so "1.0" equals "1.0.0" and "1.0.0-RC"
// equals "1.0.0-rc".
func (v Version) Equal(other Version) bool { return v.Compare(other) == 0 }

// comparePreRelease compares two pre-release strings per SemVer 2.0.0 §11:
// numeric ids as integers, alphanumeric ids case-insensitively,
// numeric < alphanumeric, fewer fields < more.
func comparePreRelease(a, b string) int {
	if strings.EqualFold(a, b) {
		return 0
	}
	ap := strings.Split(a, ".")
	bp := strings.Split(b, ".")
	n := min(len(ap), len(bp))
	for i := 0; i < n; i++ {
		ai, aErr := strconv.Atoi(ap[i])
		bi, bErr := strconv.Atoi(bp[i])
		switch {
		case aErr == nil && bErr == nil:
			if ai != bi {
				if ai > bi {
					return 1
				}
				return -1
			}
		case aErr == nil:
			return -1
		case bErr == nil:
			return 1
		default:
			if c := strings.Compare(strings.ToLower(ap[i]), strings.ToLower(bp[i])); c != 0 {
				return c
			}
		}
	}
	switch {
	case len(ap) > len(bp):
		return 1
	case len(ap) < len(bp):
		return -1
	}
	return 0
}

func (v Version) IsPreRelease() bool { return v.PreRelease != "" }

// String returns the version as written, minus build metadata.
func (v Version) String() string {
	if v.Build != "" {
		return v.Raw[:len(v.Raw)-len(v.Build)-1]
	}
	return v.Raw
}

// SortDescending sorts newest first and drops entries that share precedence
// with an earlier one, keeping the first occurrence.
func SortDescending(vs []Version) []Version {
	slices.SortStableFunc(vs, func(a, b Version) int { return b.Compare(a) })
	return slices.CompactFunc(vs, func(a, b Version) bool { return a.Equal(b) })
}
