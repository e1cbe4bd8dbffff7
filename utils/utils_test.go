package utils

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "images.json")
	require.NoError(t, AtomicWriteJSON(path, map[string]int{"a": 1}))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": 1\n}\n", string(raw))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp file left behind")
}

func TestValidFileAndStems(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.blob"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.blob"), nil, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.tar"), []byte("x"), 0o600))

	assert.True(t, ValidFile(filepath.Join(dir, "a.blob")))
	assert.False(t, ValidFile(filepath.Join(dir, "b.blob")), "empty")
	assert.False(t, ValidFile(dir), "directory")
	assert.ElementsMatch(t, []string{"a", "b"}, ScanFileStems(dir, ".blob"))
	assert.Empty(t, ScanFileStems(filepath.Join(dir, "missing"), ".blob"))
}

func TestFilterUnreferenced(t *testing.T) {
	refs := map[string]struct{}{"a": {}}
	skip := map[string]struct{}{"c": {}}
	assert.Equal(t, []string{"b"}, FilterUnreferenced([]string{"a", "b", "c"}, refs, skip))
}

func TestRemoveMatching(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "pull-1"), 0o750))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "keep"), 0o750))
	errs := RemoveMatching(context.Background(), dir, func(e os.DirEntry) bool { return e.Name() == "pull-1" })
	assert.Empty(t, errs)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "keep", entries[0].Name())
	assert.Nil(t, RemoveMatching(context.Background(), filepath.Join(dir, "missing"), nil))
}

func TestWaitFor(t *testing.T) {
	n := 0
	require.NoError(t, WaitFor(context.Background(), time.Second, time.Millisecond, func() (bool, error) {
		n++
		return n == 3, nil
	}))

	boom := errors.New("boom")
	assert.ErrorIs(t, WaitFor(context.Background(), time.Second, time.Millisecond, func() (bool, error) {
		return false, boom
	}), boom)

	err := WaitFor(context.Background(), 10*time.Millisecond, time.Millisecond, func() (bool, error) {
		return false, nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
