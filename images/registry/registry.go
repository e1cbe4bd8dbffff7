package registry

import (
	"context"
	"fmt"
	"os"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/projecteru2/core/log"

	"github.com/projecteru2/pullwatch/config"
	"github.com/projecteru2/pullwatch/images"
	"github.com/projecteru2/pullwatch/lock"
	"github.com/projecteru2/pullwatch/progress"
	"github.com/projecteru2/pullwatch/storage"
	"github.com/projecteru2/pullwatch/types"
)

const typ = "registry"

// compile-time interface check.
var _ images.Images = (*Registry)(nil)

// Registry stores images pulled from OCI / Docker registries: compressed
// blobs, their extracted tars and a JSON index of refs.
type Registry struct {
	conf   *config.Config
	store  storage.Store[imageIndex]
	locker lock.Locker
	remote []remote.Option
}

// New creates a Registry backend. opts are appended to every remote call.
func New(ctx context.Context, conf *config.Config, opts ...remote.Option) (*Registry, error) {
	if err := conf.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("ensure dirs: %w", err)
	}
	store, locker := images.NewStore[imageIndex](conf.ImageIndexFile(), conf.ImageIndexLock())
	log.WithFunc("registry.New").Debugf(ctx, "registry backend initialized, root: %s, pool size: %d", conf.RootDir, conf.PoolSize)
	return &Registry{
		conf:   conf,
		store:  store,
		locker: locker,
		remote: append([]remote.Option{remote.WithAuthFromKeychain(authn.DefaultKeychain)}, opts...),
	}, nil
}

func (r *Registry) Type() string { return typ }

// Pull fetches ref and reports every step to h.
func (r *Registry) Pull(ctx context.Context, ref string, h progress.Handler) error {
	return doPull(ctx, r, ref, h)
}

// List returns all locally stored images.
func (r *Registry) List(ctx context.Context) (result []*types.Image, err error) {
	err = r.store.With(ctx, func(idx *imageIndex) error {
		for _, entry := range idx.Images {
			if entry == nil {
				continue
			}
			var size int64
			for _, l := range entry.Layers {
				size += fileSize(r.conf.BlobPath(l.Digest.Hex())) + fileSize(r.conf.LayerPath(l.Digest.Hex()))
			}
			result = append(result, &types.Image{
				ID:        entry.ManifestDigest.String(),
				Name:      entry.Ref,
				Type:      typ,
				Layers:    len(entry.Layers),
				Size:      size,
				CreatedAt: entry.CreatedAt,
			})
		}
		return nil
	})
	return
}

// Delete removes images from the index and returns the refs it removed.
// Artifacts stay on disk until GC.
func (r *Registry) Delete(ctx context.Context, ids []string) ([]string, error) {
	logger := log.WithFunc("registry.Delete")
	var deleted []string
	err := r.store.Update(ctx, func(idx *imageIndex) error {
		for _, id := range ids {
			refs := idx.LookupRefs(id)
			if len(refs) == 0 {
				logger.Infof(ctx, "image %q not found, skipping", id)
				continue
			}
			for _, ref := range refs {
				delete(idx.Images, ref)
				deleted = append(deleted, ref)
				logger.Infof(ctx, "deleted from index: %s", ref)
			}
		}
		return nil
	})
	return deleted, err
}

func fileSize(path string) int64 {
	if info, err := os.Stat(path); err == nil {
		return info.Size()
	}
	return 0
}
