package registry

import (
	"context"
	"errors"
	"os"

	"github.com/projecteru2/pullwatch/gc"
	"github.com/projecteru2/pullwatch/images"
	"github.com/projecteru2/pullwatch/utils"
)

// snapshot is what GC sees of the registry store.
type snapshot struct {
	refs   map[string]struct{} // digest hexes referenced by the index
	blobs  []string            // digest hexes of .blob files on disk
	layers []string            // digest hexes of .tar files on disk
}

// GCModule returns the registry store's GC module.
func (r *Registry) GCModule() gc.Module[snapshot] {
	return gc.Module[snapshot]{
		Name:   typ,
		Locker: r.locker,
		ReadDB: func(context.Context) (snapshot, error) {
			var snap snapshot
			if err := r.store.Read(func(idx *imageIndex) error {
				snap.refs = images.ReferencedDigests(idx.Images)
				return nil
			}); err != nil {
				return snap, err
			}
			snap.blobs = utils.ScanFileStems(r.conf.BlobsDir(), ".blob")
			snap.layers = utils.ScanFileStems(r.conf.LayersDir(), ".tar")
			return snap, nil
		},
		Resolve: func(snap snapshot, _ map[string]any) []string {
			orphans := utils.FilterUnreferenced(snap.blobs, snap.refs)
			seen := make(map[string]struct{}, len(orphans))
			for _, hex := range orphans {
				seen[hex] = struct{}{}
			}
			return append(orphans, utils.FilterUnreferenced(snap.layers, snap.refs, seen)...)
		},
		Collect: func(ctx context.Context, ids []string) error {
			errs := images.GCStaleTemp(ctx, r.conf.TempDir())
			for _, hex := range ids {
				for _, path := range []string{r.conf.BlobPath(hex), r.conf.LayerPath(hex)} {
					if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
						errs = append(errs, err)
					}
				}
			}
			return errors.Join(errs...)
		},
	}
}

// RegisterGC registers the registry store with o.
func (r *Registry) RegisterGC(o *gc.Orchestrator) {
	gc.Register(o, r.GCModule())
}
