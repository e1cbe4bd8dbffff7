package sink

import (
	"context"
	"io"

	"golang.org/x/term"

	"github.com/projecteru2/pullwatch/job"
)

// Display selects how tasks are rendered.
type Display string

const (
	DisplayAuto Display = "auto"
	DisplayBar  Display = "bar"
	DisplayLog  Display = "log"
)

// ResolveDisplay turns DisplayAuto into a bar when fd is a terminal and
// into log lines otherwise. Unknown values fall back to log lines.
func ResolveDisplay(d Display, fd int) Display {
	switch d {
	case DisplayBar, DisplayLog:
		return d
	case DisplayAuto:
		if term.IsTerminal(fd) {
			return DisplayBar
		}
	}
	return DisplayLog
}

// compile-time interface check.
var _ job.SinkFactory = (*Factory)(nil)

// Factory creates Tasks scheduled on a shared Scheduler.
type Factory struct {
	sched    Scheduler
	renderer func() Renderer
}

// NewFactory creates a Factory. w receives bar output; log output goes
// through the structured logger bound to ctx.
func NewFactory(ctx context.Context, sched Scheduler, display Display, w io.Writer) *Factory {
	f := &Factory{sched: sched}
	switch display {
	case DisplayBar:
		lw := &lockedWriter{w: w}
		f.renderer = func() Renderer { return &barRenderer{w: lw} }
	default:
		f.renderer = func() Renderer { return &logRenderer{ctx: ctx} }
	}
	return f
}

func (f *Factory) Determinate(name, title string) job.Sink {
	return NewTask(name, title, true, f.sched, f.renderer())
}

func (f *Factory) Indeterminate(name, title string) job.StatusSink {
	return NewTask(name, title, false, f.sched, f.renderer())
}
