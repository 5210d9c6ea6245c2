package editor

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	lipgloss "github.com/charmbracelet/lipgloss"

	"github.com/nulifyer/nuglyph/glyphs"
)

const pickerVisible = 12

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	footer := m.renderFooter()

	var overlay string
	switch {
	case m.picker.active:
		overlay = m.renderPickerOverlay()
	case m.showHelp:
		overlay = m.renderHelpOverlay()
	}
	if overlay != "" {
		lines := strings.Split(overlay, "\n")
		if maxLines := m.height - lipgloss.Height(footer); len(lines) > maxLines && maxLines > 0 {
			lines = lines[:maxLines]
		}
		return strings.Join(lines, "\n") + "\n" + footer
	}

	parts := []string{m.renderHeader(), m.renderBody()}
	if m.showLogs {
		parts = append(parts, m.renderLogPanel())
	}
	parts = append(parts, footer)
	content := lipgloss.JoinVertical(lipgloss.Left, parts...)

	if m.width > m.layoutWidth() {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Top, content)
	}
	return content
}

func (m Model) renderHeader() string {
	title := styleAccentBold.Render("◈ nuglyph")
	name := styleTextBold.Render(filepath.Base(m.buf.Path()))
	if m.buf.Dirty() {
		name += styleYellow.Render(" ●")
	}

	var phase string
	switch m.ctrl.Phase() {
	case glyphs.PhaseResolving:
		phase = m.spinner.View() + styleAccent.Render(" resolving…")
	case glyphs.PhaseReady:
		refs := m.ctrl.State().References()
		updates := 0
		for _, r := range refs {
			if r.Kind() == glyphs.KindUpdateAvailable {
				updates++
			}
		}
		phase = styleSubtle.Render(fmt.Sprintf("%d package(s)", len(refs)))
		if updates > 0 {
			phase += styleYellow.Render(fmt.Sprintf("  ↑ %d update(s)", updates))
		} else if len(refs) > 0 {
			phase += styleGreen.Render("  ✓ all up to date")
		}
	default:
		phase = styleMuted.Render(m.ctrl.Phase().String())
	}

	return styleHeaderBar.
		Width(m.layoutWidth()).
		Render(lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", name, "  ", phase))
}

func (m Model) renderBody() string {
	h := m.bodyHeight()
	lines := m.buf.Lines()
	numW := len(strconv.Itoa(len(lines)))
	textW := max(m.layoutWidth()-numW-4, 1)

	out := make([]string, 0, h)
	for i := m.offset; i < m.offset+h; i++ {
		if i >= len(lines) {
			out = append(out, styleMuted.Render("~"))
			continue
		}
		num := styleMuted.Render(fmt.Sprintf("%*d", numW, i+1))
		glyph := " "
		if mark, ok := m.host.MarkAt(i); ok {
			glyph = renderGlyph(mark.Kind)
		}
		text := truncate(strings.ReplaceAll(lines[i], "\t", "    "), textW)
		if i == m.cursor {
			text = styleCursorLine.Render(padRight(text, textW))
		} else {
			text = styleText.Render(text)
		}
		out = append(out, num+" "+glyph+" "+text)
	}
	return strings.Join(out, "\n")
}

func renderGlyph(k glyphs.Kind) string {
	if k == glyphs.KindUpToDate {
		return styleGreen.Render("✓")
	}
	return styleYellow.Render("↑")
}

func (m Model) renderPickerOverlay() string {
	w := clampW(48, 36, m.width-4)

	lines := []string{
		styleAccentBold.Render("Select version"),
		styleSubtle.Render(m.picker.pkgName) + styleMuted.Render("  declared "+m.picker.declared),
		m.picker.input.View(),
		styleBorder.Render(strings.Repeat("─", w-6)),
	}

	switch {
	case m.picker.loading:
		lines = append(lines, m.spinner.View()+styleAccent.Render(" loading versions…"))
	case len(m.picker.choices) == 0:
		lines = append(lines, styleMuted.Render("no versions available"))
	case len(m.picker.filtered) == 0:
		lines = append(lines, styleMuted.Render("no match"))
	default:
		start := 0
		if m.picker.cursor > pickerVisible-1 {
			start = m.picker.cursor - pickerVisible + 1
		}
		end := min(start+pickerVisible, len(m.picker.filtered))
		for i := start; i < end; i++ {
			c := m.picker.choices[m.picker.filtered[i]]
			label := c.Version
			var tags []string
			if c.Current {
				tags = append(tags, "current")
			}
			if c.PreRelease {
				tags = append(tags, "pre-release")
			}
			row := padRight(label, 20)
			if len(tags) > 0 {
				row += styleMuted.Render("(" + strings.Join(tags, ", ") + ")")
			}
			if i == m.picker.cursor {
				row = styleAccentBold.Render("▶ ") + row
			} else {
				row = "  " + row
			}
			lines = append(lines, row)
		}
	}

	lines = append(lines, "", styleMuted.Render("enter apply · esc cancel · type to filter"))
	box := styleOverlay.Width(w).Render(strings.Join(lines, "\n"))
	return lipgloss.Place(m.width, m.overlayHeight(), lipgloss.Center, lipgloss.Center, box)
}

const helpMarkdown = `# nuglyph

Each resolved package reference gets a glyph in the gutter:
**✓** when the declared version is the newest published one and
**↑** when a newer version exists.

| key | action |
| --- | --- |
| ↑ ↓ / j k | move the cursor |
| pgup pgdn | page up / down |
| g G | first / last line |
| n N | next / previous package reference |
| enter / v | pick a version for the reference under the cursor |
| u | update the reference under the cursor to the latest version |
| s | save the file |
| r | reload the file from disk |
| l | toggle the log panel |
| ? | toggle this help |
| q | quit |

Inside the version picker, type to filter and press **enter** to rewrite
the declared version.
`

func (m *Model) refreshHelpView() {
	w := clampW(m.width*60/100, 50, m.width-4)
	style := glamour.WithAutoStyle()
	if m.noColor {
		style = glamour.WithStandardStyle("notty")
	}

	content := helpMarkdown
	if r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(w-6)); err == nil {
		if rendered, err := r.Render(helpMarkdown); err == nil {
			content = strings.TrimRight(rendered, "\n ")
		}
	}

	m.helpView.Width = w - 4
	m.helpView.Height = max(m.overlayHeight()-6, 8)
	m.helpView.SetContent(content)
}

func (m Model) renderHelpOverlay() string {
	w := clampW(m.width*60/100, 50, m.width-4)
	box := styleOverlay.Width(w).Render(m.helpView.View())
	return lipgloss.Place(m.width, m.overlayHeight(), lipgloss.Center, lipgloss.Center, box)
}

func (m Model) renderLogPanel() string {
	title := styleAccentBold.Render("Logs")
	div := styleBorder.Render(strings.Repeat("─", max(m.layoutWidth()-6, 1)))
	content := lipgloss.JoinVertical(lipgloss.Left, title, div, m.logView.View())
	return stylePanel.Width(m.layoutWidth() - 2).Render(content)
}

func (m Model) footerKeys() []struct{ k, v string } {
	if m.picker.active || m.showHelp {
		return []struct{ k, v string }{{"esc", "close"}}
	}
	return []struct{ k, v string }{
		{"↑↓", "move"},
		{"n/N", "next/prev package"},
		{"enter", "versions"},
		{"u", "latest"},
		{"s", "save"},
		{"r", "reload"},
		{"l", "logs"},
		{"?", "help"},
		{"q", "quit"},
	}
}

func (m Model) renderFooter() string {
	w := m.layoutWidth() - 4
	var lines, cur []string
	curW := 0
	const sep = "  ·  "
	sepW := lipgloss.Width(sep)

	for _, pair := range m.footerKeys() {
		entry := styleAccentBold.Render(pair.k) + " " + styleSubtle.Render(pair.v)
		entryW := lipgloss.Width(pair.k) + 1 + lipgloss.Width(pair.v)
		needed := entryW
		if len(cur) > 0 {
			needed += sepW
		}
		if curW+needed > w && len(cur) > 0 {
			lines = append(lines, strings.Join(cur, sep))
			cur, curW = nil, 0
			needed = entryW
		}
		cur = append(cur, entry)
		curW += needed
	}
	if len(cur) > 0 {
		lines = append(lines, strings.Join(cur, sep))
	}

	// The tooltip and status rows are always reserved so the height is stable.
	tooltip := ""
	if mark, ok := m.host.MarkAt(m.cursor); ok {
		tooltip = renderGlyph(mark.Kind) + " " + styleText.Render(mark.Tooltip)
	}
	status := ""
	if m.statusLine != "" {
		s := styleGreen
		if m.statusIsErr {
			s = styleRed
		}
		status = s.Render(m.statusLine)
	}

	return styleFooterBar.
		Width(m.layoutWidth()).
		Render(tooltip + "\n" + status + "\n" + strings.Join(lines, "\n"))
}

func clampW(w, minW, maxW int) int {
	w = min(max(w, minW), maxW)
	return max(w, 10)
}

func padRight(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visible)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
