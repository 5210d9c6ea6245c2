package editor

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/nulifyer/nuglyph/glyphs"
	"github.com/nulifyer/nuglyph/logger"
)

// Buffer is an in-memory copy of a manifest file. It remembers each line's
// ending so Save writes back what it read.
type Buffer struct {
	mu    sync.Mutex
	path  string
	lines []string
	eols  []string // eols[i] follows lines[i]; the last is always ""
	rev   uint64
	dirty bool
	saved string // content as last read or written

	subs    map[int]func(glyphs.ChangeEvent)
	nextSub int
}

// NewBuffer wraps text that came from path.
func NewBuffer(path, text string) *Buffer {
	b := &Buffer{path: path, rev: 1, subs: make(map[int]func(glyphs.ChangeEvent))}
	b.lines, b.eols = splitLines(text)
	b.saved = text
	return b
}

// Open reads path into a new Buffer.
func Open(path string) (*Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return NewBuffer(path, string(data)), nil
}

// splitLines returns the lines of text without their endings, and the
// ending that followed each one.
func splitLines(text string) ([]string, []string) {
	lines := strings.Split(text, "\n")
	eols := make([]string, len(lines))
	for i, l := range lines[:len(lines)-1] {
		if trimmed, ok := strings.CutSuffix(l, "\r"); ok {
			lines[i], eols[i] = trimmed, "\r\n"
		} else {
			eols[i] = "\n"
		}
	}
	return lines, eols
}

func joinLines(lines, eols []string) string {
	var sb strings.Builder
	for i, l := range lines {
		sb.WriteString(l)
		sb.WriteString(eols[i])
	}
	return sb.String()
}

func (b *Buffer) Path() string { return b.path }

// Text returns the content with "\n" line endings and its revision.
func (b *Buffer) Text() (string, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.lines, "\n"), b.rev
}

func (b *Buffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.lines...)
}

func (b *Buffer) LineCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lines)
}

func (b *Buffer) LineText(line int) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if line < 0 || line >= len(b.lines) {
		return "", fmt.Errorf("line %d out of range (%d lines)", line+1, len(b.lines))
	}
	return b.lines[line], nil
}

// ReplaceLine swaps one line. text must not contain a line break.
func (b *Buffer) ReplaceLine(line int, text string) error {
	if strings.ContainsAny(text, "\r\n") {
		return errors.New("replacement contains a line break")
	}
	b.mu.Lock()
	if line < 0 || line >= len(b.lines) {
		n := len(b.lines)
		b.mu.Unlock()
		return fmt.Errorf("line %d out of range (%d lines)", line+1, n)
	}
	b.lines[line] = text
	b.rev++
	b.dirty = true
	rev := b.rev
	b.mu.Unlock()

	b.notify(glyphs.ChangeEvent{Kind: glyphs.ContentChanged, Revision: rev})
	return nil
}

func (b *Buffer) Revision() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rev
}

func (b *Buffer) Dirty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dirty
}

func (b *Buffer) Subscribe(fn func(glyphs.ChangeEvent)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Reflow tells subscribers the view moved without a content change.
func (b *Buffer) Reflow() {
	b.notify(glyphs.ChangeEvent{Kind: glyphs.Reflowed, Revision: b.Revision()})
}

func (b *Buffer) notify(ev glyphs.ChangeEvent) {
	b.mu.Lock()
	fns := make([]func(glyphs.ChangeEvent), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// Reload re-reads the file. It reports whether the content changed. Unsaved
// edits are kept when the file on disk has not changed since it was last
// read or written.
func (b *Buffer) Reload() (bool, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", b.path, err)
	}
	text := string(data)

	b.mu.Lock()
	if text == b.saved {
		b.mu.Unlock()
		return false, nil
	}
	if b.dirty {
		logger.Warn("%s changed on disk; discarding unsaved edits", b.path)
	}
	b.lines, b.eols = splitLines(text)
	b.saved = text
	b.dirty = false
	b.rev++
	rev := b.rev
	b.mu.Unlock()

	b.notify(glyphs.ChangeEvent{Kind: glyphs.ContentChanged, Revision: rev})
	return true, nil
}

// Save writes the buffer back with the line endings it was read with. Edits
// made while the write is in progress keep the buffer dirty.
func (b *Buffer) Save() error {
	b.mu.Lock()
	text := joinLines(b.lines, b.eols)
	rev := b.rev
	b.mu.Unlock()

	perm := os.FileMode(0o644)
	if info, err := os.Stat(b.path); err == nil {
		perm = info.Mode().Perm()
	}
	if err := writeFileRetry(b.path, []byte(text), perm); err != nil {
		return fmt.Errorf("write %s: %w", b.path, err)
	}

	b.mu.Lock()
	b.saved = text
	if b.rev == rev {
		b.dirty = false
	} else {
		logger.Debug("%s was edited during save; still unsaved", b.path)
	}
	b.mu.Unlock()
	return nil
}

// writeFileRetry wraps os.WriteFile with retries to handle transient file
// locks on Windows (antivirus, IDE file watchers, indexing services).
func writeFileRetry(path string, data []byte, perm os.FileMode) error {
	const maxAttempts = 5
	var err error
	for i := range maxAttempts {
		err = os.WriteFile(path, data, perm)
		if err == nil {
			return nil
		}
		if i < maxAttempts-1 {
			logger.Debug("write retry %d/%d for %s: %v", i+1, maxAttempts, path, err)
			time.Sleep(time.Duration(50*(i+1)) * time.Millisecond)
		}
	}
	return err
}
