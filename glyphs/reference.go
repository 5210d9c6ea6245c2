package glyphs

import (
	"fmt"

	"github.com/nulifyer/nuglyph/nuget"
)

// Kind is the visual state of a decoration.
type Kind int

const (
	KindUpToDate Kind = iota
	KindUpdateAvailable
)

func (k Kind) String() string {
	switch k {
	case KindUpToDate:
		return "up-to-date"
	case KindUpdateAvailable:
		return "update-available"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// PackageReference is one declaration found in a manifest. Line is only
// meaningful against the document revision it was parsed from.
type PackageReference struct {
	PackageID       string
	DeclaredVersion string
	Line            int

	LatestVersion string
	Resolved      bool
}

// IsUpToDate compares the two version strings exactly. "1.0.0" and "1.0"
// are different here even though they share precedence.
func IsUpToDate(declared, latest string) bool {
	return declared == latest
}

func (r PackageReference) IsUpToDate() bool {
	return IsUpToDate(r.DeclaredVersion, r.LatestVersion)
}

// IsPrerelease reports whether the declared version carries a release label.
func (r PackageReference) IsPrerelease() bool {
	return nuget.ParseVersion(r.DeclaredVersion).IsPreRelease()
}

func (r PackageReference) Kind() Kind {
	if r.IsUpToDate() {
		return KindUpToDate
	}
	return KindUpdateAvailable
}

func (r PackageReference) Tooltip() string {
	if r.IsUpToDate() {
		return fmt.Sprintf("%s is up-to-date (v%s)", r.PackageID, r.DeclaredVersion)
	}
	return fmt.Sprintf("%s v%s → v%s available", r.PackageID, r.DeclaredVersion, r.LatestVersion)
}
