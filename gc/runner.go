package gc

import (
	"context"

	"github.com/projecteru2/pullwatch/lock"
)

// runner erases S so the Orchestrator can hold modules of different
// snapshot types.
type runner interface {
	getName() string
	getLocker() lock.Locker
	readSnapshot(ctx context.Context) (any, error)
	resolveTargets(snap any, others map[string]any) []string
	collect(ctx context.Context, ids []string) error
}
