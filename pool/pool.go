package pool

import (
	"context"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/projecteru2/core/log"
)

// Pool runs long-lived background tasks on a bounded set of goroutines.
// Submission never blocks: a full or released pool rejects the task.
type Pool struct {
	p *ants.Pool
}

// New creates a Pool of size goroutines.
func New(ctx context.Context, size int) (*Pool, error) {
	logger := log.WithFunc("pool.New")
	p, err := ants.NewPool(size,
		ants.WithNonblocking(true),
		ants.WithExpiryDuration(time.Minute),
		ants.WithPanicHandler(func(v any) {
			logger.Errorf(ctx, fmt.Errorf("%v", v), "background task panicked")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create ants pool: %w", err)
	}
	logger.Debugf(ctx, "task pool initialized, size: %d", size)
	return &Pool{p: p}, nil
}

// Submit starts task on a pool goroutine.
func (p *Pool) Submit(task func()) error {
	if err := p.p.Submit(task); err != nil {
		return fmt.Errorf("submit task (%d/%d running): %w", p.p.Running(), p.p.Cap(), err)
	}
	return nil
}

// Running returns the number of tasks currently executing.
func (p *Pool) Running() int { return p.p.Running() }

// Release stops accepting tasks and waits up to timeout for running ones.
func (p *Pool) Release(timeout time.Duration) error {
	return p.p.ReleaseTimeout(timeout)
}
