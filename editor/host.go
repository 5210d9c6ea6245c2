package editor

import (
	"sort"
	"sync"

	bubble_tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/nulifyer/nuglyph/glyphs"
)

// Mark is a decoration drawn in the gutter.
type Mark struct {
	Handle  glyphs.DecorationHandle
	Line    int
	Kind    glyphs.Kind
	Tooltip string
}

// postMsg carries a function posted by the controller onto the UI loop.
type postMsg struct {
	fn func()
}

// Host is the view and decoration surface the controller talks to. The
// controller calls it from its own goroutines as well as from Update, so
// every field is guarded.
type Host struct {
	mu      sync.Mutex
	first   int
	height  int
	marks   map[int]Mark
	handles map[glyphs.DecorationHandle]int
	send    func(bubble_tea.Msg)
}

// NewHost returns a host whose Post runs functions inline until Attach is
// called.
func NewHost() *Host {
	return &Host{
		marks:   make(map[int]Mark),
		handles: make(map[glyphs.DecorationHandle]int),
	}
}

// Attach routes posted functions through send, normally tea.Program.Send.
func (h *Host) Attach(send func(bubble_tea.Msg)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.send = send
}

// SetViewport records which lines are on screen.
func (h *Host) SetViewport(first, height int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.first = max(first, 0)
	h.height = max(height, 0)
}

func (h *Host) VisibleLines() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	lines := make([]int, h.height)
	for i := range lines {
		lines[i] = h.first + i
	}
	return lines
}

func (h *Host) Post(fn func()) {
	h.mu.Lock()
	send := h.send
	h.mu.Unlock()
	if send == nil {
		fn()
		return
	}
	send(postMsg{fn: fn})
}

func (h *Host) PlaceDecoration(line int, kind glyphs.Kind, tooltip string) glyphs.DecorationHandle {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.marks[line]; ok {
		delete(h.handles, old.Handle)
	}
	handle := glyphs.DecorationHandle(uuid.NewString())
	h.marks[line] = Mark{Handle: handle, Line: line, Kind: kind, Tooltip: tooltip}
	h.handles[handle] = line
	return handle
}

// RemoveDecoration ignores handles it does not know.
func (h *Host) RemoveDecoration(handle glyphs.DecorationHandle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	line, ok := h.handles[handle]
	if !ok {
		return
	}
	delete(h.handles, handle)
	if m, ok := h.marks[line]; ok && m.Handle == handle {
		delete(h.marks, line)
	}
}

// MarkAt returns the decoration on line, if any.
func (h *Host) MarkAt(line int) (Mark, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.marks[line]
	return m, ok
}

// Marks returns every decoration ordered by line.
func (h *Host) Marks() []Mark {
	h.mu.Lock()
	out := make([]Mark, 0, len(h.marks))
	for _, m := range h.marks {
		out = append(out, m)
	}
	h.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Line < out[j].Line })
	return out
}
