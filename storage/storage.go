package storage

import "context"

// Initer is implemented by documents that need their zero value fixed up
// (nil maps) after loading or when nothing is on disk yet.
type Initer interface {
	Init()
}

// Store is a locked document of type T.
type Store[T any] interface {
	// With loads the document and runs fn while holding the lock.
	With(ctx context.Context, fn func(*T) error) error
	// Update is With plus an atomic write-back when fn returns nil.
	Update(ctx context.Context, fn func(*T) error) error

	// Read and Write are the lock-free halves of With and Update, for
	// callers that already hold the lock via TryLock (GC).
	Read(fn func(*T) error) error
	Write(fn func(*T) error) error
	// TryLock returns (false, nil) when the lock is held elsewhere.
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}
