package progress

import "context"

// Handler receives pull progress messages.
// A non-nil error ends the operation: the producer must stop delivering
// messages and surface the error to its caller.
type Handler interface {
	Process(ctx context.Context, msg Message) error
}

// HandlerFunc adapts a plain function to a Handler.
type HandlerFunc func(context.Context, Message) error

func (f HandlerFunc) Process(ctx context.Context, msg Message) error { return f(ctx, msg) }

// Nop accepts every message, for callers that don't need progress.
var Nop Handler = HandlerFunc(func(context.Context, Message) error { return nil })
