package job

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"

	"github.com/projecteru2/pullwatch/progress"
)

// ErrSchedule marks every ScheduleError.
var ErrSchedule = errors.New("schedule sink")

// ScheduleError is recorded as a job's failing result when its sink could
// not be started.
type ScheduleError struct {
	ID  string
	Err error
}

func (e *ScheduleError) Error() string {
	return fmt.Sprintf("schedule sink for %s: %v", e.ID, e.Err)
}

func (e *ScheduleError) Unwrap() error { return e.Err }

func (e *ScheduleError) Is(target error) bool { return target == ErrSchedule }

// Kind tells how a job reports progress. It is fixed at creation.
type Kind int

const (
	// Determinate jobs know their byte total and show a percentage.
	Determinate Kind = iota
	// Indeterminate jobs only show the producer's free-text progress.
	Indeterminate
)

func (k Kind) String() string {
	if k == Determinate {
		return "determinate"
	}
	return "indeterminate"
}

// KindOf picks the kind for a job created from msg.
func KindOf(msg progress.Message) Kind {
	if msg.HasTotal() {
		return Determinate
	}
	return Indeterminate
}

// Job tracks one layer sub-operation and owns its sink.
type Job struct {
	id   string
	kind Kind
	sink Sink
	// status is set iff kind == Indeterminate.
	status StatusSink

	mu          sync.Mutex
	percentage  int
	statusText  string
	scheduleErr error

	cancelled atomic.Bool
}

// New creates a job with a sink from f. The sink is not scheduled yet.
func New(id string, kind Kind, name, title string, f SinkFactory) *Job {
	j := &Job{id: id, kind: kind, percentage: -1}
	switch kind {
	case Determinate:
		j.sink = f.Determinate(name, title)
	case Indeterminate:
		j.status = f.Indeterminate(name, title)
		j.sink = j.status
	}
	return j
}

func (j *Job) ID() string { return j.id }

func (j *Job) Kind() Kind { return j.kind }

// Start schedules the sink. A scheduling failure becomes the job's
// failing result and is also returned.
func (j *Job) Start() error {
	if err := j.sink.Schedule(); err != nil {
		serr := &ScheduleError{ID: j.id, Err: err}
		j.mu.Lock()
		j.scheduleErr = serr
		j.mu.Unlock()
		return serr
	}
	return nil
}

// Percentage returns the last percentage set, or -1 if none was.
func (j *Job) Percentage() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.percentage
}

// SetPercentage clamps pct to 0..100 and forwards it to the sink.
func (j *Job) SetPercentage(pct int) {
	pct = min(max(pct, 0), 100) //nolint:mnd
	j.mu.Lock()
	j.percentage = pct
	j.mu.Unlock()
	j.sink.SetPercentageDone(pct)
}

func (j *Job) StatusText() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.statusText
}

// SetStatusText shows text on an indeterminate job; determinate jobs ignore it.
func (j *Job) SetStatusText(text string) {
	if j.kind != Indeterminate {
		return
	}
	j.mu.Lock()
	j.statusText = text
	j.mu.Unlock()
	j.status.SetStatusMessage(text)
}

// Update applies a downloading or extracting message.
// Messages without a detail are ignored. A determinate job only recomputes
// its percentage when both counters are positive, so a missing total never
// overwrites a valid value. A message announcing a total on an
// indeterminate job does not change its kind.
func (j *Job) Update(msg progress.Message) {
	if msg.Detail == nil {
		return
	}
	switch j.kind {
	case Indeterminate:
		j.SetStatusText(msg.Progress)
	case Determinate:
		if pct, ok := msg.Detail.Percentage(); ok {
			j.SetPercentage(pct)
		}
	}
}

// Cancel asks the sink to stop. Only the first call on a non-terminal job
// reaches the sink; it reports whether this call did.
func (j *Job) Cancel() bool {
	if _, done := j.Result(); done {
		return false
	}
	if !j.cancelled.CompareAndSwap(false, true) {
		return false
	}
	j.sink.Cancel()
	return true
}

// Result returns the terminal result, or false while the job is running.
func (j *Job) Result() (Result, bool) {
	j.mu.Lock()
	serr := j.scheduleErr
	j.mu.Unlock()
	if serr != nil {
		return Result{OK: false, Err: serr}, true
	}
	return j.sink.Result()
}
