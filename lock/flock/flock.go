package flock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/projecteru2/pullwatch/lock"
)

const retryDelay = 50 * time.Millisecond

// compile-time interface check.
var _ lock.Locker = (*Lock)(nil)

// Lock is a file lock usable from many goroutines of one process and from
// several pullwatch processes sharing a root dir.
//
// A size-1 channel serialises goroutines (so Lock can honour ctx and
// TryLock can fail fast); flock(2) on a fresh fd serialises processes.
type Lock struct {
	path  string
	token chan struct{}

	mu   sync.Mutex
	held *flock.Flock
}

// New returns a Lock on path. The file is created on first acquisition.
func New(path string) *Lock {
	return &Lock{path: path, token: make(chan struct{}, 1)}
}

// Lock blocks until the lock is held or ctx is done.
func (l *Lock) Lock(ctx context.Context) error {
	select {
	case l.token <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("wait for %s: %w", l.path, ctx.Err())
	}
	ok, err := l.acquire(func(fl *flock.Flock) (bool, error) {
		return fl.TryLockContext(ctx, retryDelay)
	})
	switch {
	case err != nil:
		return fmt.Errorf("flock %s: %w", l.path, err)
	case !ok:
		return fmt.Errorf("flock %s: %w", l.path, ctx.Err())
	}
	return nil
}

// TryLock returns (false, nil) when someone else holds the lock.
func (l *Lock) TryLock(_ context.Context) (bool, error) {
	select {
	case l.token <- struct{}{}:
	default:
		return false, nil
	}
	return l.acquire(func(fl *flock.Flock) (bool, error) { return fl.TryLock() })
}

// Unlock releases the lock. Calling it while not held is a no-op and
// leaves an acquisition in flight untouched.
func (l *Lock) Unlock(_ context.Context) error {
	l.mu.Lock()
	fl := l.held
	l.held = nil
	l.mu.Unlock()
	if fl == nil {
		return nil
	}
	err := fl.Unlock()
	<-l.token
	if err != nil {
		return fmt.Errorf("unflock %s: %w", l.path, err)
	}
	return nil
}

// acquire hands the token back on failure so Lock/Unlock stay balanced.
func (l *Lock) acquire(try func(*flock.Flock) (bool, error)) (bool, error) {
	fl := flock.New(l.path)
	ok, err := try(fl)
	if err != nil || !ok {
		_ = fl.Close()
		<-l.token
		return false, err
	}
	l.mu.Lock()
	l.held = fl
	l.mu.Unlock()
	return true, nil
}
