package lock

import (
	"context"
	"fmt"
)

// Locker guards the on-disk image index against concurrent pulls, deletes
// and GC sweeps, both within this process and across processes.
type Locker interface {
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
	TryLock(ctx context.Context) (bool, error)
}

// WithLock runs fn while holding l. The unlock error is reported only when
// fn itself succeeded.
func WithLock(ctx context.Context, l Locker, fn func() error) (err error) {
	if err = l.Lock(ctx); err != nil {
		return err
	}
	defer func() {
		if uerr := l.Unlock(ctx); uerr != nil && err == nil {
			err = fmt.Errorf("unlock: %w", uerr)
		}
	}()
	return fn()
}
