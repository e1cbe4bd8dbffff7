package job_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projecteru2/pullwatch/job"
	"github.com/projecteru2/pullwatch/job/jobtest"
	"github.com/projecteru2/pullwatch/progress"
)

func newJob(t *testing.T, kind job.Kind) (*job.Job, *jobtest.Sink) {
	t.Helper()
	f := &jobtest.Factory{}
	j := job.New("L1", kind, "Downloading image busybox", "Downloading layer L1", f)
	require.Len(t, f.Sinks(), 1)
	return j, f.Sinks()[0]
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, job.Indeterminate, job.KindOf(progress.Message{}))
	assert.Equal(t, job.Indeterminate, job.KindOf(progress.Message{Detail: &progress.Detail{Current: 3}}))
	assert.Equal(t, job.Determinate, job.KindOf(progress.Message{Detail: &progress.Detail{Total: 100}}))
}

func TestDeterminateUpdate(t *testing.T) {
	j, sink := newJob(t, job.Determinate)
	assert.Equal(t, -1, j.Percentage())

	j.Update(progress.Message{Detail: &progress.Detail{Current: 75, Total: 100}})
	assert.Equal(t, 75, j.Percentage())

	// Same counters, same percentage.
	j.Update(progress.Message{Detail: &progress.Detail{Current: 75, Total: 100}})
	assert.Equal(t, 75, j.Percentage())
	assert.Equal(t, []int{75, 75}, sink.Percentages())

	// Zero total or missing detail never regress a valid value.
	j.Update(progress.Message{Detail: &progress.Detail{Current: 80}})
	j.Update(progress.Message{Detail: &progress.Detail{Total: 100}})
	j.Update(progress.Message{})
	assert.Equal(t, 75, j.Percentage())
	assert.Equal(t, []int{75, 75}, sink.Percentages())

	// Free text is not shown on a determinate job.
	j.Update(progress.Message{Progress: "ignored", Detail: &progress.Detail{Current: 1, Total: 3}})
	assert.Equal(t, 33, j.Percentage())
	assert.Empty(t, j.StatusText())
	assert.Empty(t, sink.Messages())
}

func TestIndeterminateUpdate(t *testing.T) {
	j, sink := newJob(t, job.Indeterminate)

	j.Update(progress.Message{Progress: "Extracting 3/10 layers", Detail: &progress.Detail{}})
	assert.Equal(t, "Extracting 3/10 layers", j.StatusText())

	// A total arriving later keeps the job indeterminate.
	j.Update(progress.Message{Progress: "Extracting 4/10 layers", Detail: &progress.Detail{Current: 4, Total: 10}})
	assert.Equal(t, job.Indeterminate, j.Kind())
	assert.Equal(t, -1, j.Percentage())
	assert.Equal(t, "Extracting 4/10 layers", j.StatusText())

	// No detail, no update.
	j.Update(progress.Message{Progress: "dropped"})
	assert.Equal(t, []string{"Extracting 3/10 layers", "Extracting 4/10 layers"}, sink.Messages())
}

func TestSetPercentageClamps(t *testing.T) {
	j, sink := newJob(t, job.Indeterminate)
	j.SetPercentage(150)
	assert.Equal(t, 100, j.Percentage())
	j.SetPercentage(-3)
	assert.Equal(t, 0, j.Percentage())
	assert.Equal(t, []int{100, 0}, sink.Percentages())
}

func TestCancelOnce(t *testing.T) {
	j, sink := newJob(t, job.Determinate)

	var wg sync.WaitGroup
	var mu sync.Mutex
	won := 0
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if j.Cancel() {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, sink.Cancels())
}

func TestCancelTerminalIsNoop(t *testing.T) {
	j, sink := newJob(t, job.Determinate)
	sink.Finish(job.Result{OK: true})
	assert.False(t, j.Cancel())
	assert.Equal(t, 0, sink.Cancels())
}

func TestStartSchedulingFailure(t *testing.T) {
	boom := errors.New("pool overloaded")
	f := &jobtest.Factory{ScheduleErr: boom}
	j := job.New("L3", job.Determinate, "n", "t", f)

	_, done := j.Result()
	require.False(t, done)

	err := j.Start()
	require.Error(t, err)
	assert.ErrorIs(t, err, job.ErrSchedule)
	assert.ErrorIs(t, err, boom)

	res, done := j.Result()
	require.True(t, done)
	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Err, job.ErrSchedule)

	// A job that never ran is terminal; nothing to cancel.
	assert.False(t, j.Cancel())
}

func TestStartSchedules(t *testing.T) {
	j, sink := newJob(t, job.Determinate)
	require.NoError(t, j.Start())
	assert.Equal(t, 1, sink.Scheduled())
	_, done := j.Result()
	assert.False(t, done)
}
