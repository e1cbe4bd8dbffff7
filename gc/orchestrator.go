package gc

import (
	"context"
	"fmt"
	"strings"

	"github.com/projecteru2/core/log"
)

// Orchestrator runs GC across every registered image store.
type Orchestrator struct {
	modules []runner
}

// New creates an empty Orchestrator.
func New() *Orchestrator { return &Orchestrator{} }

// Register adds m. It is a function because methods cannot take type
// parameters.
func Register[S any](o *Orchestrator, m Module[S]) {
	o.modules = append(o.modules, m)
}

// Run executes one cycle. Every module lock is taken with TryLock and held
// until the cycle ends; if any store is busy (a pull is committing) the
// whole cycle is abandoned so the next run sees a consistent view.
func (o *Orchestrator) Run(ctx context.Context) error {
	logger := log.WithFunc("gc.Run")

	var locked []runner
	var busy []string
	for _, m := range o.modules {
		ok, err := m.getLocker().TryLock(ctx)
		switch {
		case err != nil:
			logger.Warnf(ctx, "skip %s: %v", m.getName(), err)
			busy = append(busy, m.getName())
		case !ok:
			logger.Warnf(ctx, "skip %s: index locked by another operation", m.getName())
			busy = append(busy, m.getName())
		default:
			locked = append(locked, m)
		}
	}
	defer func() {
		for _, m := range locked {
			m.getLocker().Unlock(ctx) //nolint:errcheck,gosec
		}
	}()
	if len(busy) > 0 {
		return fmt.Errorf("gc aborted, busy: %s", strings.Join(busy, ", "))
	}

	snapshots := make(map[string]any, len(locked))
	for _, m := range locked {
		snap, err := m.readSnapshot(ctx)
		if err != nil {
			return fmt.Errorf("snapshot %s: %w", m.getName(), err)
		}
		snapshots[m.getName()] = snap
	}

	var errs []string
	for _, m := range locked {
		ids := m.resolveTargets(snapshots[m.getName()], snapshots)
		if len(ids) == 0 {
			logger.Debugf(ctx, "%s: nothing to collect", m.getName())
			continue
		}
		logger.Infof(ctx, "%s: collecting %d item(s)", m.getName(), len(ids))
		if err := m.collect(ctx, ids); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", m.getName(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("gc errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
