package glyphs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// ─────────────────────────────────────────────
// Document
// ─────────────────────────────────────────────

type fakeDoc struct {
	mu          sync.Mutex
	lines       []string
	rev         uint64
	subs        map[int]func(ChangeEvent)
	nextSub     int
	replaceErr  error
	replaceCall int
}

func newFakeDoc(text string) *fakeDoc {
	return &fakeDoc{lines: strings.Split(text, "\n"), rev: 1, subs: map[int]func(ChangeEvent){}}
}

func (d *fakeDoc) Text() (string, uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return strings.Join(d.lines, "\n"), d.rev
}

func (d *fakeDoc) LineText(line int) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if line < 0 || line >= len(d.lines) {
		return "", fmt.Errorf("line %d out of range", line)
	}
	return d.lines[line], nil
}

func (d *fakeDoc) ReplaceLine(line int, text string) error {
	d.mu.Lock()
	d.replaceCall++
	if d.replaceErr != nil {
		d.mu.Unlock()
		return d.replaceErr
	}
	if line < 0 || line >= len(d.lines) {
		d.mu.Unlock()
		return fmt.Errorf("line %d out of range", line)
	}
	d.lines[line] = text
	d.rev++
	rev := d.rev
	d.mu.Unlock()
	d.notify(ChangeEvent{Kind: ContentChanged, Revision: rev})
	return nil
}

func (d *fakeDoc) Revision() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rev
}

func (d *fakeDoc) Subscribe(fn func(ChangeEvent)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextSub
	d.nextSub++
	d.subs[id] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.subs, id)
	}
}

func (d *fakeDoc) subscribers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subs)
}

// SetText replaces the whole buffer and notifies.
func (d *fakeDoc) SetText(text string) {
	d.mu.Lock()
	d.lines = strings.Split(text, "\n")
	d.rev++
	rev := d.rev
	d.mu.Unlock()
	d.notify(ChangeEvent{Kind: ContentChanged, Revision: rev})
}

// setLineSilently edits a line without telling subscribers.
func (d *fakeDoc) setLineSilently(line int, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lines[line] = text
	d.rev++
}

func (d *fakeDoc) Reflow() {
	d.notify(ChangeEvent{Kind: Reflowed, Revision: d.Revision()})
}

func (d *fakeDoc) notify(ev ChangeEvent) {
	d.mu.Lock()
	fns := make([]func(ChangeEvent), 0, len(d.subs))
	for _, fn := range d.subs {
		fns = append(fns, fn)
	}
	d.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// ─────────────────────────────────────────────
// View and Surface
// ─────────────────────────────────────────────

type fakeView struct {
	mu      sync.Mutex
	visible []int
	posts   atomic.Int32
}

func newFakeView(lines ...int) *fakeView { return &fakeView{visible: lines} }

func (v *fakeView) VisibleLines() []int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]int(nil), v.visible...)
}

func (v *fakeView) setVisible(lines ...int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.visible = lines
}

func (v *fakeView) Post(fn func()) {
	v.posts.Add(1)
	fn()
}

type decoration struct {
	line    int
	kind    Kind
	tooltip string
}

type fakeSurface struct {
	mu      sync.Mutex
	next    int
	placed  map[DecorationHandle]decoration
	created int
	removed int
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{placed: map[DecorationHandle]decoration{}}
}

func (s *fakeSurface) PlaceDecoration(line int, kind Kind, tooltip string) DecorationHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	h := DecorationHandle(fmt.Sprintf("d%d", s.next))
	s.placed[h] = decoration{line: line, kind: kind, tooltip: tooltip}
	s.created++
	return h
}

func (s *fakeSurface) RemoveDecoration(h DecorationHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.placed[h]; ok {
		delete(s.placed, h)
		s.removed++
	}
}

func (s *fakeSurface) byLine() map[int]decoration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]decoration, len(s.placed))
	for _, d := range s.placed {
		out[d.line] = d
	}
	return out
}

func (s *fakeSurface) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.placed)
}

func (s *fakeSurface) createdCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created
}

// ─────────────────────────────────────────────
// Registry
// ─────────────────────────────────────────────

type fakeRegistry struct {
	mu       sync.Mutex
	versions map[string][]string
	calls    map[string]int
	// gate, when set, blocks every query until it is closed or ctx ends.
	gate chan struct{}
}

func newFakeRegistry(versions map[string][]string) *fakeRegistry {
	lower := make(map[string][]string, len(versions))
	for id, vs := range versions {
		lower[strings.ToLower(id)] = vs
	}
	return &fakeRegistry{versions: lower, calls: map[string]int{}}
}

func (r *fakeRegistry) Versions(ctx context.Context, packageID string) ([]string, error) {
	id := strings.ToLower(packageID)
	r.mu.Lock()
	r.calls[id]++
	gate := r.gate
	vs, ok := r.versions[id]
	r.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !ok {
		return nil, errors.New("404 not found")
	}
	return vs, nil
}

func (r *fakeRegistry) set(id string, versions []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.versions[strings.ToLower(id)] = versions
}

func (r *fakeRegistry) callCount(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[strings.ToLower(id)]
}
