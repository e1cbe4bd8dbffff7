package catalog

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/projecteru2/core/log"
	"golang.org/x/sync/singleflight"

	"github.com/projecteru2/pullwatch/pull"
	"github.com/projecteru2/pullwatch/types"
)

const reloadKey = "reload"

// Lister is the read side of an image store.
type Lister interface {
	Type() string
	List(context.Context) ([]*types.Image, error)
}

// compile-time interface check.
var _ pull.Refresher = (*Catalog)(nil)

// Catalog caches the merged image list of several stores. Pulls poke it
// through Refresh whenever a layer or image lands.
type Catalog struct {
	ctx      context.Context //nolint:containedctx // background reloads
	backends []Lister
	group    singleflight.Group
	wg       sync.WaitGroup

	mu     sync.RWMutex
	images []*types.Image
	loaded bool
}

// New creates an empty Catalog. ctx bounds the background reloads.
func New(ctx context.Context, backends ...Lister) *Catalog {
	return &Catalog{ctx: ctx, backends: backends}
}

// Refresh reloads in the background when forced or when nothing has been
// loaded yet. Concurrent reloads collapse into one.
func (c *Catalog) Refresh(forceReload bool) {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if loaded && !forceReload {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if _, err := c.reload(); err != nil {
			log.WithFunc("catalog.Refresh").Warnf(c.ctx, "reload image list: %v", err)
		}
	}()
}

// Images returns the cached list, loading it first if needed.
func (c *Catalog) Images(ctx context.Context) ([]*types.Image, error) {
	c.mu.RLock()
	imgs, loaded := c.images, c.loaded
	c.mu.RUnlock()
	if loaded {
		return slices.Clone(imgs), nil
	}
	ch := c.group.DoChan(reloadKey, c.load)
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]*types.Image)), nil //nolint:forcetypeassert
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Wait blocks until every background reload has finished.
func (c *Catalog) Wait() { c.wg.Wait() }

func (c *Catalog) reload() ([]*types.Image, error) {
	v, err, _ := c.group.Do(reloadKey, c.load)
	if err != nil {
		return nil, err
	}
	return v.([]*types.Image), nil //nolint:forcetypeassert
}

func (c *Catalog) load() (any, error) {
	var all []*types.Image
	for _, b := range c.backends {
		imgs, err := b.List(c.ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", b.Type(), err)
		}
		all = append(all, imgs...)
	}
	slices.SortFunc(all, func(a, b *types.Image) int {
		if n := strings.Compare(a.Type, b.Type); n != 0 {
			return n
		}
		return strings.Compare(a.Name, b.Name)
	})

	c.mu.Lock()
	c.images, c.loaded = all, true
	c.mu.Unlock()
	log.WithFunc("catalog.load").Debugf(c.ctx, "image list reloaded, %d image(s)", len(all))
	return all, nil
}
