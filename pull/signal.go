package pull

import "context"

// CancelSignal is polled on every message. It must never block.
type CancelSignal interface {
	IsCancelled() bool
}

// SignalFunc adapts a plain function to a CancelSignal.
type SignalFunc func() bool

func (f SignalFunc) IsCancelled() bool { return f() }

// Never is a CancelSignal that is never set.
var Never CancelSignal = SignalFunc(func() bool { return false })

// ContextSignal is set once ctx is done.
func ContextSignal(ctx context.Context) CancelSignal {
	return SignalFunc(func() bool { return ctx.Err() != nil })
}

// Refresher reloads the local image list after a layer or image finished.
type Refresher interface {
	Refresh(forceReload bool)
}

// RefresherFunc adapts a plain function to a Refresher.
type RefresherFunc func(forceReload bool)

func (f RefresherFunc) Refresh(forceReload bool) { f(forceReload) }
