package job

// Result is the terminal outcome of a sink's background work.
type Result struct {
	OK  bool
	Err error
}

// Sink reports one job's progress from a background task.
// Result returns false until the task has finished or been cancelled and
// must never block.
type Sink interface {
	Schedule() error
	Cancel()
	Result() (Result, bool)
	SetPercentageDone(pct int)
}

// StatusSink is a Sink that also shows a free-text status line.
type StatusSink interface {
	Sink
	SetStatusMessage(msg string)
}

// SinkFactory creates the sink for a new job.
// name identifies the owning operation, title the job itself.
type SinkFactory interface {
	Determinate(name, title string) Sink
	Indeterminate(name, title string) StatusSink
}
