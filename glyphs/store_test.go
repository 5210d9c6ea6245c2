package glyphs

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateStore_ReplaceAndLookup(t *testing.T) {
	s := NewStateStore()
	_, ok := s.Lookup(3)
	assert.False(t, ok, "new store is empty")
	assert.Equal(t, uint64(0), s.Current().Revision)

	ref := PackageReference{PackageID: "A", DeclaredVersion: "1.0.0", Line: 3, LatestVersion: "2.0.0", Resolved: true}
	s.Replace(NewState(7, []PackageReference{ref}))

	got, ok := s.Lookup(3)
	assert.True(t, ok)
	assert.Equal(t, ref, got)
	_, ok = s.Lookup(4)
	assert.False(t, ok)
	assert.Equal(t, uint64(7), s.Current().Revision)
}

func TestStateStore_ReplaceDropsOldEntries(t *testing.T) {
	s := NewStateStore()
	s.Replace(NewState(1, []PackageReference{{PackageID: "A", Line: 1}, {PackageID: "B", Line: 2}}))
	s.Replace(NewState(2, []PackageReference{{PackageID: "C", Line: 5}}))

	_, ok := s.Lookup(1)
	assert.False(t, ok)
	assert.Equal(t, 1, s.Current().Len())
}

func TestStateStore_Clear(t *testing.T) {
	s := NewStateStore()
	s.Replace(NewState(1, []PackageReference{{PackageID: "A", Line: 1}}))
	s.Clear(4)
	assert.Equal(t, 0, s.Current().Len())
	assert.Equal(t, uint64(4), s.Current().Revision)

	s.Replace(nil)
	assert.NotNil(t, s.Current())
}

func TestState_References(t *testing.T) {
	st := NewState(1, []PackageReference{{PackageID: "C", Line: 9}, {PackageID: "A", Line: 1}, {PackageID: "B", Line: 4}})
	var ids []string
	for _, r := range st.References() {
		ids = append(ids, r.PackageID)
	}
	assert.Equal(t, []string{"A", "B", "C"}, ids)

	var nilState *State
	assert.Nil(t, nilState.References())
	assert.Zero(t, nilState.Len())
}

// Readers must only ever see one of the complete states.
func TestStateStore_NoPartialVisibility(t *testing.T) {
	s := NewStateStore()
	full := func(rev uint64) *State {
		refs := make([]PackageReference, 50)
		for i := range refs {
			refs[i] = PackageReference{PackageID: "P", Line: i}
		}
		return NewState(rev, refs)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for rev := uint64(1); rev <= 200; rev++ {
			if rev%2 == 0 {
				s.Clear(rev)
			} else {
				s.Replace(full(rev))
			}
		}
	}()
	for i := 0; i < 1000; i++ {
		n := s.Current().Len()
		if n != 0 && n != 50 {
			t.Fatalf("observed partial state with %d entries", n)
		}
	}
	wg.Wait()
}
