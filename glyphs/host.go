package glyphs

// ChangeKind tells a content edit apart from a layout change.
type ChangeKind int

const (
	ContentChanged ChangeKind = iota
	Reflowed
)

type ChangeEvent struct {
	Kind     ChangeKind
	Revision uint64
}

// Document is the host's text buffer. Revision increases on every content
// change. ReplaceLine either applies fully or not at all.
type Document interface {
	Text() (string, uint64)
	LineText(line int) (string, error)
	ReplaceLine(line int, text string) error
	Revision() uint64
	Subscribe(fn func(ChangeEvent)) (unsubscribe func())
}

// View is the host's UI sequence. Post runs fn on it.
type View interface {
	VisibleLines() []int
	Post(fn func())
}

type DecorationHandle string

// Surface draws and removes line decorations.
type Surface interface {
	PlaceDecoration(line int, kind Kind, tooltip string) DecorationHandle
	RemoveDecoration(h DecorationHandle)
}
