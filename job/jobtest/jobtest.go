// Package jobtest provides in-memory sinks for testing job consumers.
package jobtest

import (
	"sync"

	"github.com/projecteru2/pullwatch/job"
)

// Sink records every call it receives. Finish sets its result.
type Sink struct {
	Name  string
	Title string

	// ScheduleErr is returned by Schedule when set.
	ScheduleErr error

	mu          sync.Mutex
	scheduled   int
	cancels     int
	percentages []int
	messages    []string
	result      *job.Result
}

func (s *Sink) Schedule() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ScheduleErr != nil {
		return s.ScheduleErr
	}
	s.scheduled++
	return nil
}

func (s *Sink) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels++
}

func (s *Sink) Result() (job.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return job.Result{}, false
	}
	return *s.result, true
}

func (s *Sink) SetPercentageDone(pct int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.percentages = append(s.percentages, pct)
}

func (s *Sink) SetStatusMessage(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

// Finish makes Result report res from now on.
func (s *Sink) Finish(res job.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = &res
}

func (s *Sink) Scheduled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduled
}

func (s *Sink) Cancels() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancels
}

func (s *Sink) Percentages() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.percentages...)
}

func (s *Sink) Messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}

// Factory hands out Sinks and remembers them by title.
type Factory struct {
	// ScheduleErr is copied into every sink created afterwards.
	ScheduleErr error

	mu    sync.Mutex
	sinks []*Sink
}

func (f *Factory) Determinate(name, title string) job.Sink {
	return f.create(name, title)
}

func (f *Factory) Indeterminate(name, title string) job.StatusSink {
	return f.create(name, title)
}

func (f *Factory) create(name, title string) *Sink {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &Sink{Name: name, Title: title, ScheduleErr: f.ScheduleErr}
	f.sinks = append(f.sinks, s)
	return s
}

// Sinks returns all sinks created so far, oldest first.
func (f *Factory) Sinks() []*Sink {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Sink(nil), f.sinks...)
}

// Last returns the most recently created sink with title, or nil.
func (f *Factory) Last(title string) *Sink {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sinks) - 1; i >= 0; i-- {
		if f.sinks[i].Title == title {
			return f.sinks[i]
		}
	}
	return nil
}

// Created returns the number of sinks created so far.
func (f *Factory) Created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sinks)
}
