package images

import (
	"context"

	"github.com/projecteru2/pullwatch/gc"
	"github.com/projecteru2/pullwatch/progress"
	"github.com/projecteru2/pullwatch/types"
)

// Images is a local image store that pulls from somewhere remote.
//
// Pull reports its work to h as a stream of progress messages; an error
// returned by h aborts the pull and is returned from Pull.
type Images interface {
	Type() string

	Pull(ctx context.Context, ref string, h progress.Handler) error
	List(context.Context) ([]*types.Image, error)
	Delete(context.Context, []string) ([]string, error)

	RegisterGC(*gc.Orchestrator)
}
