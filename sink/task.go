package sink

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"

	"github.com/projecteru2/pullwatch/job"
)

var errScheduled = errors.New("task already scheduled")

// Scheduler starts background work. It must not block.
type Scheduler interface {
	Submit(task func()) error
}

// Renderer shows one task's progress. All calls for a task come from that
// task's goroutine, Begin first and End last.
type Renderer interface {
	Begin(name, title string, determinate bool)
	Percentage(pct int)
	Status(msg string)
	End(ok bool)
}

// compile-time interface check.
var _ job.StatusSink = (*Task)(nil)

// Task is the background unit behind one job. It runs until the job
// reaches 100% (ok) or is cancelled (not ok), forwarding every change to
// its Renderer on the way.
type Task struct {
	name        string
	title       string
	determinate bool
	sched       Scheduler
	render      Renderer

	ctx       context.Context //nolint:containedctx // owns the task lifetime
	cancel    context.CancelFunc
	wake      chan struct{}
	scheduled atomic.Bool

	mu      sync.Mutex
	pct     int
	msg     string
	changed bool

	result atomic.Pointer[job.Result]
}

// NewTask creates an unscheduled Task.
func NewTask(name, title string, determinate bool, sched Scheduler, render Renderer) *Task {
	ctx, cancel := context.WithCancel(context.Background())
	return &Task{
		name:        name,
		title:       title,
		determinate: determinate,
		sched:       sched,
		render:      render,
		ctx:         ctx,
		cancel:      cancel,
		wake:        make(chan struct{}, 1),
		pct:         -1,
	}
}

// Schedule submits the task. It may only succeed once.
func (t *Task) Schedule() error {
	if !t.scheduled.CompareAndSwap(false, true) {
		return errScheduled
	}
	if err := t.sched.Submit(t.run); err != nil {
		t.cancel()
		return err
	}
	return nil
}

// Cancel requests the task to stop; it does not wait.
func (t *Task) Cancel() { t.cancel() }

func (t *Task) Result() (job.Result, bool) {
	if r := t.result.Load(); r != nil {
		return *r, true
	}
	return job.Result{}, false
}

func (t *Task) SetPercentageDone(pct int) {
	t.mu.Lock()
	t.pct = pct
	t.changed = true
	t.mu.Unlock()
	t.notify()
}

func (t *Task) SetStatusMessage(msg string) {
	t.mu.Lock()
	t.msg = msg
	t.changed = true
	t.mu.Unlock()
	t.notify()
}

func (t *Task) notify() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

func (t *Task) run() {
	t.render.Begin(t.name, t.title, t.determinate)
	var shownPct = -1
	var shownMsg string
	for {
		select {
		case <-t.ctx.Done():
			t.finish(job.Result{OK: false, Err: context.Cause(t.ctx)})
			return
		case <-t.wake:
		}

		t.mu.Lock()
		pct, msg, changed := t.pct, t.msg, t.changed
		t.changed = false
		t.mu.Unlock()
		if !changed {
			continue
		}

		if msg != shownMsg {
			shownMsg = msg
			t.render.Status(msg)
		}
		if pct != shownPct {
			shownPct = pct
			t.render.Percentage(pct)
		}
		if pct >= 100 { //nolint:mnd
			t.finish(job.Result{OK: true})
			return
		}
	}
}

func (t *Task) finish(res job.Result) {
	t.render.End(res.OK)
	t.result.Store(&res)
	t.cancel()
}
