package flock

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projecteru2/pullwatch/lock"
)

func TestTryLockContended(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "images.lock")
	a, b := New(path), New(path)

	ok, err := a.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = a.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "same instance is held")

	ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "flock is held through another fd")

	require.NoError(t, a.Unlock(ctx))
	ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, b.Unlock(ctx))
}

func TestLockHonoursContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "images.lock")
	l := New(path)
	require.NoError(t, l.Lock(context.Background()))
	defer l.Unlock(context.Background()) //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Lock(ctx), context.DeadlineExceeded)
}

func TestWithLockReleases(t *testing.T) {
	ctx := context.Background()
	l := New(filepath.Join(t.TempDir(), "images.lock"))
	ran := false
	require.NoError(t, lock.WithLock(ctx, l, func() error {
		ran = true
		return nil
	}))
	assert.True(t, ran)

	ok, err := l.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, l.Unlock(ctx))
}

func TestUnlockNotHeldLeavesPendingAcquire(t *testing.T) {
	ctx := context.Background()
	l := New(filepath.Join(t.TempDir(), "images.lock"))

	// Another goroutine has taken the token but not yet flocked.
	l.token <- struct{}{}
	require.NoError(t, l.Unlock(ctx))
	assert.Len(t, l.token, 1)

	ok, err := l.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	<-l.token
}

func TestFailedTryLockClosesFile(t *testing.T) {
	fds := func() int {
		entries, err := os.ReadDir("/proc/self/fd")
		if err != nil {
			t.Skip("no /proc/self/fd")
		}
		return len(entries)
	}
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "images.lock")
	a, b := New(path), New(path)
	ok, err := a.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	defer a.Unlock(ctx) //nolint:errcheck

	before := fds()
	for range 64 {
		ok, err := b.TryLock(ctx)
		require.NoError(t, err)
		require.False(t, ok)
	}
	assert.LessOrEqual(t, fds(), before+2)
}
