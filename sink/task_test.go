package sink

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projecteru2/pullwatch/pool"
	"github.com/projecteru2/pullwatch/utils"
)

type goScheduler struct{}

func (goScheduler) Submit(task func()) error {
	go task()
	return nil
}

type failScheduler struct{ err error }

func (f failScheduler) Submit(func()) error { return f.err }

type recorder struct {
	mu          sync.Mutex
	begun       bool
	determinate bool
	pcts        []int
	msgs        []string
	ended       bool
	ok          bool
}

func (r *recorder) Begin(_, _ string, determinate bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.begun, r.determinate = true, determinate
}

func (r *recorder) Percentage(pct int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pcts = append(r.pcts, pct)
}

func (r *recorder) Status(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recorder) End(ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ended, r.ok = true, ok
}

func waitResult(t *testing.T, task *Task) {
	t.Helper()
	require.NoError(t, utils.WaitFor(context.Background(), 5*time.Second, 5*time.Millisecond, func() (bool, error) {
		_, ok := task.Result()
		return ok, nil
	}))
}

func TestTaskCompletesAtHundred(t *testing.T) {
	rec := &recorder{}
	task := NewTask("l1", "Downloading layer l1", true, goScheduler{}, rec)
	require.NoError(t, task.Schedule())

	task.SetPercentageDone(40)
	task.SetPercentageDone(100)
	waitResult(t, task)

	res, _ := task.Result()
	assert.True(t, res.OK)
	assert.NoError(t, res.Err)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.True(t, rec.begun)
	assert.True(t, rec.determinate)
	assert.True(t, rec.ended)
	assert.True(t, rec.ok)
	require.NotEmpty(t, rec.pcts)
	assert.Equal(t, 100, rec.pcts[len(rec.pcts)-1])
}

func TestTaskCancelFinishesNotOK(t *testing.T) {
	rec := &recorder{}
	task := NewTask("l1", "Extracting layer l1", false, goScheduler{}, rec)
	require.NoError(t, task.Schedule())
	task.SetStatusMessage("Extracting 3 MB")

	task.Cancel()
	waitResult(t, task)

	res, _ := task.Result()
	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Err, context.Canceled)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.True(t, rec.ended)
	assert.False(t, rec.ok)
	assert.False(t, rec.determinate)
}

func TestTaskNoResultWhileRunning(t *testing.T) {
	task := NewTask("l1", "t", true, goScheduler{}, &recorder{})
	require.NoError(t, task.Schedule())
	task.SetPercentageDone(10)
	_, ok := task.Result()
	assert.False(t, ok)
	task.Cancel()
	waitResult(t, task)
}

func TestTaskScheduleOnce(t *testing.T) {
	task := NewTask("l1", "t", true, goScheduler{}, &recorder{})
	require.NoError(t, task.Schedule())
	assert.Error(t, task.Schedule())
	task.Cancel()
	waitResult(t, task)
}

func TestTaskScheduleFailure(t *testing.T) {
	boom := errors.New("pool full")
	rec := &recorder{}
	task := NewTask("l1", "t", true, failScheduler{err: boom}, rec)

	assert.ErrorIs(t, task.Schedule(), boom)
	_, ok := task.Result()
	assert.False(t, ok, "an unscheduled task never produces a result")
	assert.False(t, rec.begun)
}

func TestTaskOnPool(t *testing.T) {
	p, err := pool.New(context.Background(), 4)
	require.NoError(t, err)
	defer p.Release(time.Second) //nolint:errcheck

	f := NewFactory(context.Background(), p, DisplayLog, nil)
	det := f.Determinate("l1", "Downloading layer l1")
	ind := f.Indeterminate("l2", "Extracting layer l2")
	require.NoError(t, det.Schedule())
	require.NoError(t, ind.Schedule())

	ind.SetStatusMessage("Extracting 1 MB")
	det.SetPercentageDone(100)
	ind.Cancel()

	require.Eventually(t, func() bool {
		_, a := det.Result()
		_, b := ind.Result()
		return a && b
	}, 5*time.Second, 5*time.Millisecond)

	res, _ := det.Result()
	assert.True(t, res.OK)
	res, _ = ind.Result()
	assert.False(t, res.OK)
}

func TestBarFactoryRenders(t *testing.T) {
	var buf bytes.Buffer
	lw := &lockedWriter{w: &buf}
	f := NewFactory(context.Background(), goScheduler{}, DisplayBar, lw)
	task := f.Determinate("l1", "Downloading layer l1")
	require.NoError(t, task.Schedule())
	task.SetPercentageDone(100)
	require.Eventually(t, func() bool {
		_, ok := task.Result()
		return ok
	}, 5*time.Second, 5*time.Millisecond)

	lw.mu.Lock()
	defer lw.mu.Unlock()
	assert.Contains(t, buf.String(), "Downloading layer l1")
}

func TestResolveDisplay(t *testing.T) {
	assert.Equal(t, DisplayBar, ResolveDisplay(DisplayBar, -1))
	assert.Equal(t, DisplayLog, ResolveDisplay(DisplayLog, -1))
	assert.Equal(t, DisplayLog, ResolveDisplay(DisplayAuto, -1))
	assert.Equal(t, DisplayLog, ResolveDisplay("fancy", -1))
}
