package nuget

import (
	"testing"
)

func TestParseVersion_Standard(t *testing.T) {
	tests := []struct {
		input                         string
		major, minor, patch, revision int
		pre                           string
	}{
		{"1.2.3", 1, 2, 3, 0, ""},
		{"0.0.0", 0, 0, 0, 0, ""},
		{"1.2", 1, 2, 0, 0, ""},
		{"5", 5, 0, 0, 0, ""},

		// 4-part (NuGet style)
		{"1.2.3.4", 1, 2, 3, 4, ""},

		{"1.0.0-beta.1", 1, 0, 0, 0, "beta.1"},
		{"2.1.0-preview.3", 2, 1, 0, 0, "preview.3"},
		{"1.0.0+build.123", 1, 0, 0, 0, ""},
		{"1.0.0-beta.1+sha.abc123", 1, 0, 0, 0, "beta.1"},
		{"3.0.0-beta.24301.2", 3, 0, 0, 0, "beta.24301.2"},

		{"", 0, 0, 0, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v := ParseVersion(tt.input)
			if v.Major != tt.major || v.Minor != tt.minor || v.Patch != tt.patch || v.Revision != tt.revision {
				t.Errorf("segments: got %d.%d.%d.%d, want %d.%d.%d.%d",
					v.Major, v.Minor, v.Patch, v.Revision, tt.major, tt.minor, tt.patch, tt.revision)
			}
			if v.PreRelease != tt.pre {
				t.Errorf("PreRelease: got %q, want %q", v.PreRelease, tt.pre)
			}
			if v.Raw != tt.input {
				t.Errorf("Raw: got %q, want %q", v.Raw, tt.input)
			}
		})
	}
}

func TestTryParseVersion(t *testing.T) {
	tests := []struct {
		input string
		ok    bool
	}{
		{"1.0.0", true},
		{"1.0", true},
		{"1", true},
		{"1.2.3.4", true},
		{"1.0.0-beta", true},
		{"1.0.0-beta.1", true},
		{"1.0.0-beta-2", true},
		{"1.0.0+meta", true},
		{"1.0.0-rc.1+build.5", true},

		{"", false},
		{"abc", false},
		{"1.2.3.4.5", false},
		{"1..0", false},
		{"1.0.0-", false},
		{"1.0.0-beta..1", false},
		{"1.0.0+", false},
		{" 1.0.0", false},
		{"1.0.0 ", false},
		{"v1.0.0", false},
		{"[1.0,2.0)", false},
		{"$(Version)", false},
		{"1.*", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, ok := TryParseVersion(tt.input)
			if ok != tt.ok {
				t.Errorf("TryParseVersion(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
		})
	}
}

func TestString_OmitsBuildMetadata(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1.0.0", "1.0.0"},
		{"1.0.0-beta.1", "1.0.0-beta.1"},
		{"1.0.0+metadata", "1.0.0"},
		{"1.15.0+02753db24d9685e54db06739eb63183d86eb5b62", "1.15.0"},
		{"6.0.0.0", "6.0.0.0"},
	}
	for _, tt := range tests {
		if got := ParseVersion(tt.input).String(); got != tt.want {
			t.Errorf("ParseVersion(%q).String() = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"2.0.0", "1.0.0", 1},
		{"1.2.0", "1.10.0", -1},
		{"1.0.2", "1.0.1", 1},
		{"1.0.0.1", "1.0.0", 1},
		{"1.0", "1.0.0", 0},
		{"1.0.0", "1.0.0.0", 0},

		// stable beats pre-release
		{"1.0.0", "1.0.0-alpha", 1},
		{"1.0.0-rc.1", "1.0.0", -1},
		{"2.0.0-alpha", "1.9.9", 1},

		// pre-release ordering
		{"1.0.0-alpha", "1.0.0-alpha.1", -1},
		{"1.0.0-alpha.1", "1.0.0-alpha.beta", -1},
		{"1.0.0-beta.2", "1.0.0-beta.11", -1},
		{"1.0.0-rc.1", "1.0.0-beta.11", 1},

		// labels are case-insensitive, metadata ignored
		{"1.0.0-RC.1", "1.0.0-rc.1", 0},
		{"1.0.0+abc", "1.0.0+def", 0},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			a, b := ParseVersion(tt.a), ParseVersion(tt.b)
			if got := a.Compare(b); got != tt.want {
				t.Errorf("Compare(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
			if got := b.Compare(a); got != -tt.want {
				t.Errorf("Compare(%s, %s) = %d, want %d", tt.b, tt.a, got, -tt.want)
			}
			if a.IsNewerThan(b) != (tt.want > 0) {
				t.Errorf("IsNewerThan(%s, %s) inconsistent with Compare", tt.a, tt.b)
			}
		})
	}
}

func TestIsPreRelease(t *testing.T) {
	if ParseVersion("1.0.0+build").IsPreRelease() {
		t.Error("build metadata alone is not a pre-release")
	}
	if !ParseVersion("1.0.0-alpha+build").IsPreRelease() {
		t.Error("1.0.0-alpha+build is a pre-release")
	}
}

func TestSortDescending(t *testing.T) {
	in := []Version{
		ParseVersion("11.0.2"),
		ParseVersion("13.0.1"),
		ParseVersion("12.0.0"),
		ParseVersion("13.0.3"),
		ParseVersion("13.0.3-beta1"),
		ParseVersion("13.0.1.0"),
	}
	got := SortDescending(in)
	want := []string{"13.0.3", "13.0.3-beta1", "13.0.1", "12.0.0", "11.0.2"}
	if len(got) != len(want) {
		t.Fatalf("SortDescending returned %d versions, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i].String() != want[i] {
			t.Errorf("index %d: got %s, want %s", i, got[i], want[i])
		}
	}
}
