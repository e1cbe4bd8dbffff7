package images

import (
	"github.com/projecteru2/pullwatch/lock"
	"github.com/projecteru2/pullwatch/lock/flock"
	"github.com/projecteru2/pullwatch/storage"
	storejson "github.com/projecteru2/pullwatch/storage/json"
)

// NewStore returns a JSON index and the locker guarding it. The locker is
// returned separately so GC can hold it across its read and collect
// phases.
func NewStore[T any](filePath, lockPath string) (storage.Store[T], lock.Locker) {
	locker := flock.New(lockPath)
	return storejson.New[T](filePath, locker), locker
}
