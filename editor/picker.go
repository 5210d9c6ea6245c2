package editor

import (
	bubbles_textinput "github.com/charmbracelet/bubbles/textinput"
	"github.com/sahilm/fuzzy"

	"github.com/nulifyer/nuglyph/glyphs"
)

type choicesMsg struct {
	line    int
	choices []glyphs.VersionChoice
	ok      bool
}

// versionPicker lists the versions around the declared one for a single
// reference. Typing narrows the list with a fuzzy match.
type versionPicker struct {
	active   bool
	loading  bool
	line     int
	pkgName  string
	declared string

	choices  []glyphs.VersionChoice
	filtered []int // indexes into choices
	cursor   int
	input    bubbles_textinput.Model
}

func newVersionPicker() versionPicker {
	ti := bubbles_textinput.New()
	ti.Placeholder = "filter versions…"
	ti.CharLimit = 64
	ti.Width = 30
	return versionPicker{input: ti}
}

func (p *versionPicker) open(ref glyphs.PackageReference) {
	p.active = true
	p.loading = true
	p.line = ref.Line
	p.pkgName = ref.PackageID
	p.declared = ref.DeclaredVersion
	p.choices = nil
	p.filtered = nil
	p.cursor = 0
	p.input.SetValue("")
	p.input.Focus()
}

func (p *versionPicker) close() {
	p.active = false
	p.loading = false
	p.input.Blur()
}

func (p *versionPicker) setChoices(choices []glyphs.VersionChoice) {
	p.loading = false
	p.choices = choices
	p.applyFilter()
	for i, idx := range p.filtered {
		if p.choices[idx].Current {
			p.cursor = i
			break
		}
	}
}

func (p *versionPicker) applyFilter() {
	filter := p.input.Value()
	p.filtered = p.filtered[:0]
	if filter == "" {
		for i := range p.choices {
			p.filtered = append(p.filtered, i)
		}
	} else {
		labels := make([]string, len(p.choices))
		for i, c := range p.choices {
			labels[i] = c.Version
		}
		for _, match := range fuzzy.Find(filter, labels) {
			p.filtered = append(p.filtered, match.Index)
		}
	}
	if p.cursor >= len(p.filtered) {
		p.cursor = max(len(p.filtered)-1, 0)
	}
}

func (p *versionPicker) move(delta int) {
	if len(p.filtered) == 0 {
		return
	}
	p.cursor = min(max(p.cursor+delta, 0), len(p.filtered)-1)
}

func (p *versionPicker) selected() (glyphs.VersionChoice, bool) {
	if p.cursor < 0 || p.cursor >= len(p.filtered) {
		return glyphs.VersionChoice{}, false
	}
	return p.choices[p.filtered[p.cursor]], true
}
