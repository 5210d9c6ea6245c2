package glyphs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsUpToDate_ExactStringCompare(t *testing.T) {
	for _, v := range []string{"1.0.0", "13.0.3", "1.0.0-RC.1", "$(Version)", ""} {
		assert.True(t, IsUpToDate(v, v), v)
	}
	pairs := [][2]string{
		{"1.0", "1.0.0"},
		{"1.0.0-rc.1", "1.0.0-RC.1"},
		{"1.0.0+abc", "1.0.0"},
		{"12.0.0", "13.0.3"},
	}
	for _, p := range pairs {
		assert.False(t, IsUpToDate(p[0], p[1]), "%s vs %s", p[0], p[1])
	}
}

func TestTooltip(t *testing.T) {
	outdated := PackageReference{PackageID: "Newtonsoft.Json", DeclaredVersion: "12.0.0", Line: 3, LatestVersion: "13.0.3", Resolved: true}
	assert.False(t, outdated.IsUpToDate())
	assert.Equal(t, KindUpdateAvailable, outdated.Kind())
	assert.Equal(t, "Newtonsoft.Json v12.0.0 → v13.0.3 available", outdated.Tooltip())

	current := outdated
	current.DeclaredVersion = "13.0.3"
	assert.True(t, current.IsUpToDate())
	assert.Equal(t, KindUpToDate, current.Kind())
	assert.Equal(t, "Newtonsoft.Json is up-to-date (v13.0.3)", current.Tooltip())
}

func TestIsPrerelease(t *testing.T) {
	assert.True(t, PackageReference{DeclaredVersion: "2.9.0-pre.1"}.IsPrerelease())
	assert.False(t, PackageReference{DeclaredVersion: "2.9.0"}.IsPrerelease())
	assert.False(t, PackageReference{DeclaredVersion: "2.9.0+build"}.IsPrerelease())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "up-to-date", KindUpToDate.String())
	assert.Equal(t, "update-available", KindUpdateAvailable.String())
	assert.Equal(t, "Kind(7)", Kind(7).String())
}
