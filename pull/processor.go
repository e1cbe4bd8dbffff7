package pull

import (
	"context"
	"fmt"
	"sync"

	"github.com/projecteru2/core/log"

	"github.com/projecteru2/pullwatch/job"
	"github.com/projecteru2/pullwatch/progress"
)

// compile-time interface check.
var _ progress.Handler = (*Processor)(nil)

// Processor turns the message stream of one image pull into per-layer jobs.
// Messages are expected one at a time from the producer; jobs run on their
// own goroutines and are only ever polled.
type Processor struct {
	image     string
	jobs      *job.Registry
	coord     *Coordinator
	sinks     job.SinkFactory
	refresher Refresher

	mu  sync.Mutex
	err error
}

// NewProcessor creates a Processor for the pull of image. A nil signal is
// never set; a nil refresher is skipped.
func NewProcessor(image string, sinks job.SinkFactory, signal CancelSignal, refresher Refresher) *Processor {
	if refresher == nil {
		refresher = RefresherFunc(func(bool) {})
	}
	jobs := job.NewRegistry()
	return &Processor{
		image:     image,
		jobs:      jobs,
		coord:     NewCoordinator(image, jobs, signal),
		sinks:     sinks,
		refresher: refresher,
	}
}

// Active returns the number of jobs still tracked.
func (p *Processor) Active() int { return p.jobs.Len() }

// Job returns the live job for id.
func (p *Processor) Job(id string) (*job.Job, bool) { return p.jobs.Get(id) }

// Process applies one message. The first failure is final: it is returned
// again, with no further side effects, by every later call.
func (p *Processor) Process(ctx context.Context, msg progress.Message) error {
	if err := p.failure(); err != nil {
		return err
	}

	// Cancellation is decided before the message is classified so that a
	// cancelled stream can never spawn a new job.
	if err := p.coord.Reconcile(ctx, msg); err != nil {
		return p.fail(err)
	}

	if msg.ID == "" {
		return nil
	}

	j, tracked := p.jobs.Get(msg.ID)
	status := progress.Classify(msg.Status, tracked)
	if !tracked {
		p.first(ctx, msg, status)
		return nil
	}
	p.next(ctx, j, msg, status)
	return nil
}

// first handles the first message seen for an id.
func (p *Processor) first(ctx context.Context, msg progress.Message, status progress.Status) {
	switch status {
	case progress.StatusComplete:
		// Finished before we ever tracked it, e.g. a cached layer.
		p.refresher.Refresh(true)
	case progress.StatusDownloading:
		p.track(ctx, msg, "Downloading")
	case progress.StatusExtracting:
		p.track(ctx, msg, "Extracting")
	default:
		// Pull announcements and unknown statuses carry no job.
	}
}

// next handles a message for an id that already has a job.
func (p *Processor) next(ctx context.Context, j *job.Job, msg progress.Message, status progress.Status) {
	logger := log.WithFunc("pull.Process")
	switch status {
	case progress.StatusComplete:
		j.SetPercentage(100) //nolint:mnd
		// Removing the job lets an extract job follow a finished download.
		if p.jobs.RemoveJob(j) {
			logger.Debugf(ctx, "%s: layer %s %s", p.image, msg.ID, msg.Status)
			p.refresher.Refresh(true)
		}
	case progress.StatusDownloading, progress.StatusExtracting:
		j.Update(msg)
	default:
	}
}

func (p *Processor) track(ctx context.Context, msg progress.Message, verb string) {
	logger := log.WithFunc("pull.track")
	kind := job.KindOf(msg)
	j := job.New(msg.ID, kind,
		fmt.Sprintf("%s image %s", verb, p.image),
		fmt.Sprintf("%s layer %s", verb, msg.ID),
		p.sinks,
	)
	if !p.jobs.Add(j) {
		return
	}
	if err := j.Start(); err != nil {
		// The failing result is picked up by the next sweep.
		logger.Warnf(ctx, "%s: %v", p.image, err)
		return
	}
	logger.Debugf(ctx, "%s: tracking %s layer %s (%s)", p.image, verb, msg.ID, kind)
}

func (p *Processor) failure() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *Processor) fail(err error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err == nil {
		p.err = err
	}
	return p.err
}
