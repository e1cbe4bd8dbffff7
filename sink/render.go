package sink

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/projecteru2/core/log"
	"github.com/schollz/progressbar/v3"
)

// logRenderer reports through the structured logger, one line per 10%.
type logRenderer struct {
	ctx   context.Context //nolint:containedctx // logging only
	name  string
	title string
	step  int
}

func (r *logRenderer) Begin(name, title string, determinate bool) {
	r.name, r.title, r.step = name, title, -1
	kind := "indeterminate"
	if determinate {
		kind = "determinate"
	}
	log.WithFunc("sink.Begin").Infof(r.ctx, "%s: %s started (%s)", r.name, r.title, kind)
}

func (r *logRenderer) Percentage(pct int) {
	if step := pct / 10; step > r.step { //nolint:mnd
		r.step = step
		log.WithFunc("sink.Percentage").Infof(r.ctx, "%s: %d%%", r.title, pct)
	}
}

func (r *logRenderer) Status(msg string) {
	log.WithFunc("sink.Status").Debugf(r.ctx, "%s: %s", r.title, msg)
}

func (r *logRenderer) End(ok bool) {
	logger := log.WithFunc("sink.End")
	if ok {
		logger.Infof(r.ctx, "%s: done", r.title)
		return
	}
	logger.Warnf(r.ctx, "%s: cancelled", r.title)
}

// barRenderer draws a terminal progress bar, or a spinner for
// indeterminate tasks.
type barRenderer struct {
	w     io.Writer
	title string
	bar   *progressbar.ProgressBar
}

func (r *barRenderer) Begin(_, title string, determinate bool) {
	r.title = title
	total := -1
	if determinate {
		total = 100
	}
	r.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(r.w),
		progressbar.OptionSetDescription(title),
		progressbar.OptionSetWidth(30), //nolint:mnd
		progressbar.OptionThrottle(100*time.Millisecond), //nolint:mnd
		progressbar.OptionSpinnerType(14), //nolint:mnd
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionOnCompletion(func() { _, _ = io.WriteString(r.w, "\n") }),
	)
}

func (r *barRenderer) Percentage(pct int) {
	_ = r.bar.Set(pct)
}

func (r *barRenderer) Status(msg string) {
	r.bar.Describe(r.title + " " + msg)
	if r.bar.GetMax() < 0 {
		_ = r.bar.Add(1)
	}
}

func (r *barRenderer) End(ok bool) {
	if ok {
		_ = r.bar.Finish()
		return
	}
	r.bar.Describe(r.title + " cancelled")
	_ = r.bar.Exit()
	_, _ = io.WriteString(r.w, "\n")
}

// lockedWriter serialises writes from concurrent bars.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
