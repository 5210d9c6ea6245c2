package editor

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_DebouncesWrites(t *testing.T) {
	path := writeTemp(t, "a")
	var calls atomic.Int32
	w, err := NewWatcher(path, 50*time.Millisecond, func() { calls.Add(1) })
	require.NoError(t, err)
	defer w.Close()

	for i := range 5 {
		require.NoError(t, os.WriteFile(path, []byte{byte('a' + i)}, 0o644))
	}

	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "a burst of writes fires once")
}

func TestWatcher_IgnoresSiblings(t *testing.T) {
	path := writeTemp(t, "a")
	var calls atomic.Int32
	w, err := NewWatcher(path, 20*time.Millisecond, func() { calls.Add(1) })
	require.NoError(t, err)
	defer w.Close()

	sibling := filepath.Join(filepath.Dir(path), "other.txt")
	require.NoError(t, os.WriteFile(sibling, []byte("x"), 0o644))
	time.Sleep(150 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestWatcher_NoCallbackAfterClose(t *testing.T) {
	path := writeTemp(t, "a")
	var calls atomic.Int32
	w, err := NewWatcher(path, 100*time.Millisecond, func() { calls.Add(1) })
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("b"), 0o644))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, w.Close())
	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestNewWatcher_Errors(t *testing.T) {
	_, err := NewWatcher(writeTemp(t, "a"), 0, nil)
	assert.ErrorIs(t, err, os.ErrInvalid)

	_, err = NewWatcher(filepath.Join(t.TempDir(), "missing", "x.csproj"), 0, func() {})
	assert.Error(t, err, "parent directory does not exist")
}
