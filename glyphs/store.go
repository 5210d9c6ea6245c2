package glyphs

import (
	"slices"
	"sync/atomic"
)

// State is an immutable line → reference mapping for one document revision.
type State struct {
	Revision uint64
	entries  map[int]PackageReference
}

func NewState(revision uint64, refs []PackageReference) *State {
	entries := make(map[int]PackageReference, len(refs))
	for _, r := range refs {
		entries[r.Line] = r
	}
	return &State{Revision: revision, entries: entries}
}

func (s *State) Lookup(line int) (PackageReference, bool) {
	if s == nil {
		return PackageReference{}, false
	}
	r, ok := s.entries[line]
	return r, ok
}

func (s *State) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// References returns the entries ordered by line.
func (s *State) References() []PackageReference {
	if s == nil {
		return nil
	}
	refs := make([]PackageReference, 0, len(s.entries))
	for _, r := range s.entries {
		refs = append(refs, r)
	}
	slices.SortFunc(refs, func(a, b PackageReference) int { return a.Line - b.Line })
	return refs
}

// StateStore holds the current State. Readers always see a complete
// snapshot; there is no way to patch a single line.
type StateStore struct {
	cur atomic.Pointer[State]
}

func NewStateStore() *StateStore {
	s := &StateStore{}
	s.cur.Store(NewState(0, nil))
	return s
}

func (s *StateStore) Replace(state *State) {
	if state == nil {
		state = NewState(0, nil)
	}
	s.cur.Store(state)
}

func (s *StateStore) Lookup(line int) (PackageReference, bool) {
	return s.cur.Load().Lookup(line)
}

func (s *StateStore) Current() *State {
	return s.cur.Load()
}

// Clear installs an empty state for revision.
func (s *StateStore) Clear(revision uint64) {
	s.cur.Store(NewState(revision, nil))
}
