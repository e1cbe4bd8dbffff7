package pull

import (
	"context"
	"sync/atomic"

	"github.com/projecteru2/core/log"

	"github.com/projecteru2/pullwatch/job"
	"github.com/projecteru2/pullwatch/progress"
)

// Coordinator decides, once per message, whether the whole pull must be
// cancelled, and fans the cancellation out to every live job.
// Once cancelled it stays cancelled.
type Coordinator struct {
	image     string
	jobs      *job.Registry
	signal    CancelSignal
	cancelled atomic.Bool
}

// NewCoordinator watches jobs on behalf of the pull of image.
// A nil signal is never set.
func NewCoordinator(image string, jobs *job.Registry, signal CancelSignal) *Coordinator {
	if signal == nil {
		signal = Never
	}
	return &Coordinator{image: image, jobs: jobs, signal: signal}
}

// Cancelled reports whether the operation has been cancelled.
func (c *Coordinator) Cancelled() bool { return c.cancelled.Load() }

// Reconcile sweeps finished jobs, then checks the external signal and msg's
// error. If any of them calls for cancellation, every job still registered
// is asked to stop and the failure is returned: a PullFailedError when msg
// carries an error, ErrOperationCancelled otherwise.
func (c *Coordinator) Reconcile(ctx context.Context, msg progress.Message) error {
	logger := log.WithFunc("pull.Reconcile")

	c.sweep(ctx)

	if c.signal.IsCancelled() && !c.cancelled.Swap(true) {
		logger.Warnf(ctx, "%s: cancel requested", c.image)
	}
	if msg.Error != "" {
		c.cancelled.Store(true)
	}
	if !c.cancelled.Load() {
		return nil
	}

	if n := c.cancelAll(); n > 0 {
		logger.Warnf(ctx, "%s: cancelled %d in-flight job(s)", c.image, n)
	}
	if msg.Error != "" {
		return &PullFailedError{Image: c.image, Cause: msg.Error}
	}
	return ErrOperationCancelled
}

// sweep drops every job that reached a terminal result. An unsuccessful
// result cancels the operation even if the current message looks fine.
func (c *Coordinator) sweep(ctx context.Context) {
	logger := log.WithFunc("pull.sweep")
	for _, j := range c.jobs.Jobs() {
		res, done := j.Result()
		if !done {
			continue
		}
		// A successor may already hold the id; only the swept job goes.
		if !c.jobs.RemoveJob(j) {
			continue
		}
		if res.OK {
			logger.Debugf(ctx, "%s: job %s finished", c.image, j.ID())
			continue
		}
		c.cancelled.Store(true)
		if res.Err != nil {
			logger.Warnf(ctx, "%s: job %s failed: %v", c.image, j.ID(), res.Err)
		} else {
			logger.Warnf(ctx, "%s: job %s cancelled", c.image, j.ID())
		}
	}
}

// cancelAll returns how many jobs were actually asked to stop by this call.
func (c *Coordinator) cancelAll() int {
	n := 0
	for _, j := range c.jobs.Jobs() {
		if j.Cancel() {
			n++
		}
	}
	return n
}
