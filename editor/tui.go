package editor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	bubbles_spinner "github.com/charmbracelet/bubbles/spinner"
	bubbles_viewport "github.com/charmbracelet/bubbles/viewport"
	bubble_tea "github.com/charmbracelet/bubbletea"
	lipgloss "github.com/charmbracelet/lipgloss"

	"github.com/nulifyer/nuglyph/glyphs"
	"github.com/nulifyer/nuglyph/logger"
)

const (
	logPanelLines       = 6
	logPanelOuterHeight = logPanelLines + 4 // border(2) + title(1) + divider(1)
	maxLogLines         = 500
	maxLayoutWidth      = 210
	headerHeight        = 2
)

// FileChangedMsg tells the model the file on disk changed.
type FileChangedMsg struct{}

type saveResultMsg struct {
	err error
}

type resizeDebounceMsg struct {
	id int
}

// Model is the Bubble Tea model for a single manifest.
type Model struct {
	ctx  context.Context
	buf  *Buffer
	ctrl *glyphs.Controller
	host *Host
	logs *LogSink

	width, height    int
	resizeDebounceID int

	cursor int
	offset int

	spinner bubbles_spinner.Model
	picker  versionPicker

	showHelp bool
	helpView bubbles_viewport.Model
	noColor  bool

	statusLine  string
	statusIsErr bool
	quitArmed   bool

	logLines []string
	logView  bubbles_viewport.Model
	showLogs bool
}

func NewModel(ctx context.Context, buf *Buffer, ctrl *glyphs.Controller, host *Host, logs *LogSink, noColor bool) Model {
	sp := bubbles_spinner.New()
	sp.Spinner = bubbles_spinner.Dot
	sp.Style = styleAccent

	return Model{
		ctx:      ctx,
		buf:      buf,
		ctrl:     ctrl,
		host:     host,
		logs:     logs,
		spinner:  sp,
		picker:   newVersionPicker(),
		helpView: bubbles_viewport.New(60, 20),
		logView:  bubbles_viewport.New(80, logPanelLines),
		noColor:  noColor,
	}
}

// ─────────────────────────────────────────────
// Init / Update
// ─────────────────────────────────────────────

func (m Model) Init() bubble_tea.Cmd {
	cmds := []bubble_tea.Cmd{m.spinner.Tick}
	if m.logs != nil {
		cmds = append(cmds, m.logs.next())
	}
	return bubble_tea.Batch(cmds...)
}

func (m Model) Update(msg bubble_tea.Msg) (bubble_tea.Model, bubble_tea.Cmd) {
	var cmds []bubble_tea.Cmd

	switch msg := msg.(type) {

	case bubble_tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeDebounceID++
		id := m.resizeDebounceID
		m.relayout()
		cmds = append(cmds, bubble_tea.Tick(50*time.Millisecond, func(time.Time) bubble_tea.Msg {
			return resizeDebounceMsg{id: id}
		}))

	case resizeDebounceMsg:
		if msg.id == m.resizeDebounceID && m.showHelp {
			m.refreshHelpView()
		}

	case bubbles_spinner.TickMsg:
		var cmd bubble_tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case postMsg:
		msg.fn()

	case logLineMsg:
		m.logLines = append(m.logLines, msg.line)
		if len(m.logLines) > maxLogLines {
			m.logLines = m.logLines[len(m.logLines)-maxLogLines:]
		}
		m.updateLogView()
		if m.logs != nil {
			cmds = append(cmds, m.logs.next())
		}

	case choicesMsg:
		if !m.picker.active || m.picker.line != msg.line {
			break
		}
		if !msg.ok {
			m.picker.close()
			m.setStatus("✗ The reference on this line changed; try again", true)
			break
		}
		m.picker.setChoices(msg.choices)

	case saveResultMsg:
		if msg.err != nil {
			logger.Error("save failed: %v", msg.err)
			m.setStatus("▲ Save failed: "+msg.err.Error(), true)
		} else if m.buf.Dirty() {
			m.setStatus("✓ Saved "+filepath.Base(m.buf.Path())+" (newer edits unsaved)", false)
		} else {
			m.setStatus("✓ Saved "+filepath.Base(m.buf.Path()), false)
		}

	case FileChangedMsg:
		changed, err := m.buf.Reload()
		switch {
		case err != nil:
			m.setStatus("▲ Reload failed: "+err.Error(), true)
		case changed:
			m.clampCursor()
			m.relayout()
			m.setStatus("↻ Reloaded from disk", false)
		}

	case bubble_tea.KeyMsg:
		switch {
		case m.picker.active:
			cmds = append(cmds, m.handlePickerKey(msg))
		case m.showHelp:
			cmds = append(cmds, m.handleHelpKey(msg))
		default:
			cmds = append(cmds, m.handleKey(msg))
		}
	}

	return m, bubble_tea.Batch(cmds...)
}

func (m *Model) setStatus(text string, isErr bool) {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	maxW := m.layoutWidth() - 6
	if lipgloss.Width(text) > maxW && maxW > 3 {
		text = truncate(text, maxW)
	}
	m.statusLine = text
	m.statusIsErr = isErr
}

func (m *Model) handleKey(msg bubble_tea.KeyMsg) bubble_tea.Cmd {
	key := msg.String()
	if key != "q" && key != "ctrl+c" {
		m.quitArmed = false
	}

	switch key {
	case "ctrl+c", "q":
		if m.buf.Dirty() && !m.quitArmed {
			m.quitArmed = true
			m.setStatus("▲ Unsaved changes: press q again to quit, s to save", true)
			return nil
		}
		return bubble_tea.Quit

	case "up", "k":
		m.moveCursor(-1)
	case "down", "j":
		m.moveCursor(1)
	case "pgup", "ctrl+u":
		m.moveCursor(-m.bodyHeight())
	case "pgdown", "ctrl+d":
		m.moveCursor(m.bodyHeight())
	case "home", "g":
		m.moveCursor(-m.cursor)
	case "end", "G":
		m.moveCursor(m.buf.LineCount())

	case "n":
		m.jumpReference(1)
	case "N":
		m.jumpReference(-1)

	case "enter", "v":
		return m.openPicker()

	case "u":
		m.updateToLatest()

	case "s", "ctrl+s":
		buf := m.buf
		m.setStatus("Saving…", false)
		return func() bubble_tea.Msg { return saveResultMsg{err: buf.Save()} }

	case "r":
		return func() bubble_tea.Msg { return FileChangedMsg{} }

	case "l":
		m.showLogs = !m.showLogs
		if m.showLogs {
			m.updateLogView()
		}
		m.relayout()

	case "?":
		m.showHelp = true
		m.refreshHelpView()
	}
	return nil
}

func (m *Model) handlePickerKey(msg bubble_tea.KeyMsg) bubble_tea.Cmd {
	switch msg.String() {
	case "esc":
		m.picker.close()
		return nil
	case "up", "ctrl+p":
		m.picker.move(-1)
		return nil
	case "down", "ctrl+n":
		m.picker.move(1)
		return nil
	case "pgup":
		m.picker.move(-pickerVisible)
		return nil
	case "pgdown":
		m.picker.move(pickerVisible)
		return nil
	case "enter":
		choice, ok := m.picker.selected()
		if !ok {
			return nil
		}
		line, pkg := m.picker.line, m.picker.pkgName
		m.picker.close()
		m.applyVersion(line, pkg, choice.Version)
		return nil
	}

	var cmd bubble_tea.Cmd
	before := m.picker.input.Value()
	m.picker.input, cmd = m.picker.input.Update(msg)
	if m.picker.input.Value() != before {
		m.picker.applyFilter()
	}
	return cmd
}

func (m *Model) handleHelpKey(msg bubble_tea.KeyMsg) bubble_tea.Cmd {
	switch msg.String() {
	case "esc", "?", "q":
		m.showHelp = false
		return nil
	}
	var cmd bubble_tea.Cmd
	m.helpView, cmd = m.helpView.Update(msg)
	return cmd
}

// ─────────────────────────────────────────────
// Actions
// ─────────────────────────────────────────────

func (m *Model) openPicker() bubble_tea.Cmd {
	ref, ok := m.ctrl.State().Lookup(m.cursor)
	if !ok {
		m.setStatus("No resolved package reference on this line", true)
		return nil
	}
	m.picker.open(ref)
	m.statusLine = ""

	ctx, ctrl, line := m.ctx, m.ctrl, ref.Line
	return func() bubble_tea.Msg {
		choices, ok := ctrl.VersionChoices(ctx, line)
		return choicesMsg{line: line, choices: choices, ok: ok}
	}
}

func (m *Model) updateToLatest() {
	ref, ok := m.ctrl.State().Lookup(m.cursor)
	if !ok {
		m.setStatus("No resolved package reference on this line", true)
		return
	}
	if ref.IsUpToDate() {
		m.setStatus("✓ "+ref.Tooltip(), false)
		return
	}
	m.applyVersion(ref.Line, ref.PackageID, ref.LatestVersion)
}

func (m *Model) applyVersion(line int, pkg, version string) {
	err := m.ctrl.SelectVersion(line, version)
	switch {
	case errors.Is(err, glyphs.ErrTargetNotFound):
		m.setStatus("✗ "+pkg+" is no longer declared on this line", true)
	case err != nil:
		logger.Error("set %s to %s: %v", pkg, version, err)
		m.setStatus("✗ "+err.Error(), true)
	default:
		m.setStatus(fmt.Sprintf("✓ %s → %s (unsaved)", pkg, version), false)
	}
}

func (m *Model) jumpReference(dir int) {
	refs := m.ctrl.State().References()
	if len(refs) == 0 {
		return
	}
	target := -1
	if dir > 0 {
		for _, r := range refs {
			if r.Line > m.cursor {
				target = r.Line
				break
			}
		}
	} else {
		for i := len(refs) - 1; i >= 0; i-- {
			if refs[i].Line < m.cursor {
				target = refs[i].Line
				break
			}
		}
	}
	if target >= 0 {
		m.moveCursor(target - m.cursor)
	}
}

// ─────────────────────────────────────────────
// Layout
// ─────────────────────────────────────────────

func (m *Model) moveCursor(delta int) {
	m.cursor += delta
	m.clampCursor()
	m.relayout()
}

func (m *Model) clampCursor() {
	n := m.buf.LineCount()
	m.cursor = min(max(m.cursor, 0), max(n-1, 0))
}

// relayout keeps the cursor on screen and tells the controller which lines
// are visible.
func (m *Model) relayout() {
	h := m.bodyHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+h {
		m.offset = m.cursor - h + 1
	}
	m.offset = min(max(m.offset, 0), max(m.buf.LineCount()-h, 0))

	m.logView.Width = m.layoutWidth() - 4
	m.logView.Height = logPanelLines

	m.host.SetViewport(m.offset, min(h, m.buf.LineCount()-m.offset))
	m.buf.Reflow()
}

func (m Model) layoutWidth() int {
	return min(m.width, maxLayoutWidth)
}

func (m Model) bodyHeight() int {
	h := m.height - headerHeight - lipgloss.Height(m.renderFooter())
	if m.showLogs {
		h -= logPanelOuterHeight
	}
	return max(h, 1)
}

func (m Model) overlayHeight() int {
	return m.height - lipgloss.Height(m.renderFooter())
}

func (m *Model) updateLogView() {
	colored := make([]string, 0, len(m.logLines))
	for _, line := range m.logLines {
		colored = append(colored, colorizeLogLine(line))
	}
	m.logView.SetContent(strings.Join(colored, "\n"))
	m.logView.GotoBottom()
}

func colorizeLogLine(line string) string {
	switch {
	case strings.HasPrefix(line, "[TRACE]"):
		return styleMuted.Render(line)
	case strings.HasPrefix(line, "[DEBUG]"):
		return styleSubtle.Render(line)
	case strings.HasPrefix(line, "[INFO]"):
		return styleGreen.Render(line)
	case strings.HasPrefix(line, "[WARN]"):
		return styleYellow.Render(line)
	case strings.HasPrefix(line, "[ERROR]"), strings.HasPrefix(line, "[FATAL]"):
		return styleRed.Render(line)
	default:
		return styleText.Render(line)
	}
}
