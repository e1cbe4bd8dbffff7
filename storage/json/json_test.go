package json

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projecteru2/pullwatch/lock/flock"
)

type doc struct {
	Counts map[string]int `json:"counts"`
}

func (d *doc) Init() {
	if d.Counts == nil {
		d.Counts = map[string]int{}
	}
}

func newStore(t *testing.T) (*Store[doc], string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")
	return New[doc](path, flock.New(filepath.Join(dir, "doc.lock"))), path
}

func TestMissingFileReadsAsInitialised(t *testing.T) {
	s, _ := newStore(t)
	require.NoError(t, s.With(context.Background(), func(d *doc) error {
		assert.NotNil(t, d.Counts)
		assert.Empty(t, d.Counts)
		return nil
	}))
}

func TestUpdatePersists(t *testing.T) {
	ctx := context.Background()
	s, path := newStore(t)
	require.NoError(t, s.Update(ctx, func(d *doc) error {
		d.Counts["alpine"] = 3
		return nil
	}))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"alpine": 3`)
}

func TestUpdateErrorSkipsWrite(t *testing.T) {
	ctx := context.Background()
	s, path := newStore(t)
	boom := errors.New("boom")
	err := s.Update(ctx, func(d *doc) error {
		d.Counts["x"] = 1
		return boom
	})
	assert.ErrorIs(t, err, boom)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestConcurrentUpdatesSerialise(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Update(ctx, func(d *doc) error {
				d.Counts["n"]++
				return nil
			}))
		}()
	}
	wg.Wait()
	require.NoError(t, s.With(ctx, func(d *doc) error {
		assert.Equal(t, 20, d.Counts["n"])
		return nil
	}))
}

func TestTryLockThenWrite(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	ok, err := s.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, s.Write(func(d *doc) error {
		d.Counts["gc"] = 1
		return nil
	}))
	require.NoError(t, s.Unlock(ctx))
	require.NoError(t, s.Read(func(d *doc) error {
		assert.Equal(t, 1, d.Counts["gc"])
		return nil
	}))
}

func TestCorruptFile(t *testing.T) {
	s, path := newStore(t)
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
	err := s.With(context.Background(), func(*doc) error { return nil })
	assert.ErrorContains(t, err, "parse")
}
