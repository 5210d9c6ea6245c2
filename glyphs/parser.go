package glyphs

import (
	"regexp"
	"strings"
)

// referenceRe matches a single-line, self-closing PackageReference with
// Include before Version. Tag and attribute names are case-insensitive.
var referenceRe = regexp.MustCompile(`(?i)<PackageReference\s+Include\s*=\s*"([^"]+)"\s+Version\s*=\s*"([^"]+)"\s*/>`)

// ParseReferences extracts package references from manifest text, one per
// matching line. A trailing "\r" is dropped before matching so CRLF and LF
// documents give the same records.
func ParseReferences(text string) []PackageReference {
	var refs []PackageReference
	for i, line := range strings.Split(text, "\n") {
		m := referenceRe.FindStringSubmatch(strings.TrimSuffix(line, "\r"))
		if m == nil {
			continue
		}
		refs = append(refs, PackageReference{
			PackageID:       m[1],
			DeclaredVersion: m[2],
			Line:            i,
		})
	}
	return refs
}

// replaceDeclaredVersion swaps the version value of ref's declaration in
// line for newVersion. It fails when the line no longer declares ref's
// package at ref's declared version. Everything outside the quoted value is
// kept byte for byte.
func replaceDeclaredVersion(line string, ref PackageReference, newVersion string) (string, bool) {
	m := referenceRe.FindStringSubmatchIndex(line)
	if m == nil {
		return "", false
	}
	id, version := line[m[2]:m[3]], line[m[4]:m[5]]
	if !strings.EqualFold(id, ref.PackageID) || version != ref.DeclaredVersion {
		return "", false
	}
	return line[:m[4]] + newVersion + line[m[5]:], true
}
