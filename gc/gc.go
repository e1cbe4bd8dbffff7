package gc

import (
	"context"

	"github.com/projecteru2/pullwatch/lock"
)

// Module is one image store taking part in a GC cycle. S is the snapshot
// the store reads from its index while GC holds its lock.
type Module[S any] struct {
	Name string

	// Locker is the store's index lock. A pull in progress holds it, so GC
	// never deletes artifacts a commit is about to record.
	Locker lock.Locker

	// ReadDB runs with Locker held and must not take it again.
	ReadDB func(ctx context.Context) (S, error)

	// Resolve picks the ids to delete. others holds the snapshots of every
	// module in the cycle, keyed by Name.
	Resolve func(snap S, others map[string]any) []string

	// Collect runs with Locker held and must not take it again.
	Collect func(ctx context.Context, ids []string) error
}

func (m Module[S]) getName() string        { return m.Name }
func (m Module[S]) getLocker() lock.Locker { return m.Locker }

func (m Module[S]) readSnapshot(ctx context.Context) (any, error) {
	return m.ReadDB(ctx)
}

func (m Module[S]) resolveTargets(snap any, others map[string]any) []string {
	if m.Resolve == nil {
		return nil
	}
	s, _ := snap.(S)
	return m.Resolve(s, others)
}

func (m Module[S]) collect(ctx context.Context, ids []string) error {
	return m.Collect(ctx, ids)
}
