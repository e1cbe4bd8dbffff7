package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	units "github.com/docker/go-units"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/tarball"
	"github.com/projecteru2/core/log"
	"golang.org/x/sync/errgroup"

	"github.com/projecteru2/pullwatch/config"
	"github.com/projecteru2/pullwatch/images"
	"github.com/projecteru2/pullwatch/progress"
	"github.com/projecteru2/pullwatch/utils"
)

// reportEvery throttles byte-level progress messages.
const reportEvery = 512 << 10

// layerResult is one layer staged in the work dir, or found in the cache.
type layerResult struct {
	digest images.Digest
	size   int64
	blob   string
	tar    string
}

// emitter serialises delivery to the handler. The first handler error
// cancels the fetch and mutes every later message.
type emitter struct {
	ctx    context.Context //nolint:containedctx // handler context
	h      progress.Handler
	cancel context.CancelCauseFunc

	mu  sync.Mutex
	err error
}

func (e *emitter) emit(msg progress.Message) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	if err := e.h.Process(e.ctx, msg); err != nil {
		e.err = err
		e.cancel(err)
		return err
	}
	return nil
}

func (e *emitter) status(id, status string) error {
	return e.emit(progress.Message{ID: id, Status: status})
}

func (e *emitter) failed() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// doPull fetches image, stages every missing layer concurrently, then commits
// artifacts and the index entry under the index lock.
func doPull(ctx context.Context, r *Registry, image string, h progress.Handler) error {
	logger := log.WithFunc("registry.pull")

	parsed, err := name.ParseReference(image)
	if err != nil {
		return fmt.Errorf("invalid image reference %q: %w", image, err)
	}
	platform, err := v1.ParsePlatform(r.conf.Platform)
	if err != nil {
		return fmt.Errorf("invalid platform %q: %w", r.conf.Platform, err)
	}
	ref, tag := parsed.Name(), parsed.Identifier()

	fctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	em := &emitter{ctx: ctx, h: h, cancel: cancel}

	// handlerErr prefers the handler's own error, which carries the engine's
	// failure, over whatever the cancelled fetch returned.
	handlerErr := func(err error) error {
		if herr := em.failed(); herr != nil {
			return herr
		}
		return err
	}

	if err := em.status(tag, progress.Pulling+" from "+parsed.Context().RepositoryStr()); err != nil {
		return err
	}
	logger.Infof(ctx, "pulling image: %s (platform %s)", ref, platform)

	opts := append([]remote.Option{remote.WithContext(fctx), remote.WithPlatform(*platform)}, r.remote...)
	img, err := remote.Image(parsed, opts...)
	if err != nil {
		err = fmt.Errorf("fetch image %s: %w", ref, err)
		_ = em.emit(progress.Message{ID: tag, Error: err.Error()})
		return handlerErr(err)
	}
	manifest, err := img.Digest()
	if err != nil {
		return handlerErr(fmt.Errorf("get manifest digest: %w", err))
	}
	manifestDigest := images.NewDigest(manifest.Hex)

	upToDate, err := r.upToDate(ctx, ref, manifestDigest)
	if err != nil {
		return err
	}
	if upToDate {
		logger.Infof(ctx, "already up to date: %s (%s)", ref, manifestDigest)
		if err := em.status("", "Digest: "+manifestDigest.String()); err != nil {
			return err
		}
		return em.status("", "Status: Image is up to date for "+ref)
	}

	layers, err := uniqueLayers(img)
	if err != nil {
		return handlerErr(err)
	}
	for _, l := range layers {
		if err := em.status(l.digest.Short(), progress.PullingFSLayer); err != nil {
			return err
		}
	}

	workDir, err := os.MkdirTemp(r.conf.TempDir(), "pull-*")
	if err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir) //nolint:errcheck

	results := make([]layerResult, len(layers))
	g, gctx := errgroup.WithContext(fctx)
	g.SetLimit(max(r.conf.PoolSize, 1))
	for i := range layers {
		g.Go(func() error {
			return fetchLayer(gctx, r.conf, em, layers[i].layer, workDir, &results[i])
		})
	}
	if err := g.Wait(); err != nil {
		return handlerErr(fmt.Errorf("fetch layers: %w", err))
	}

	if err := r.store.Update(ctx, func(idx *imageIndex) error {
		return commit(r.conf, idx, ref, manifestDigest, results)
	}); err != nil {
		return fmt.Errorf("update image index: %w", err)
	}
	logger.Infof(ctx, "pulled: %s (%s, layers: %d)", ref, manifestDigest, len(results))

	if err := em.status(tag, progress.PullComplete); err != nil {
		return err
	}
	if err := em.status("", "Digest: "+manifestDigest.String()); err != nil {
		return err
	}
	return em.status("", "Status: Downloaded newer image for "+ref)
}

type pendingLayer struct {
	layer  v1.Layer
	digest images.Digest
}

// uniqueLayers drops repeated digests; a manifest may list a layer twice.
func uniqueLayers(img v1.Image) ([]pendingLayer, error) {
	layers, err := img.Layers()
	if err != nil {
		return nil, fmt.Errorf("get layers: %w", err)
	}
	if len(layers) == 0 {
		return nil, errors.New("image has no layers")
	}
	seen := make(map[v1.Hash]struct{}, len(layers))
	out := make([]pendingLayer, 0, len(layers))
	for _, l := range layers {
		d, err := l.Digest()
		if err != nil {
			return nil, fmt.Errorf("get layer digest: %w", err)
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, pendingLayer{layer: l, digest: images.NewDigest(d.Hex)})
	}
	return out, nil
}

func (r *Registry) upToDate(ctx context.Context, ref string, manifest images.Digest) (bool, error) {
	var ok bool
	err := r.store.With(ctx, func(idx *imageIndex) error {
		entry := idx.Images[ref]
		if entry == nil || entry.ManifestDigest != manifest {
			return nil
		}
		for _, l := range entry.Layers {
			if !cached(r.conf, l.Digest.Hex()) {
				return nil
			}
		}
		ok = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("read image index: %w", err)
	}
	return ok, nil
}

func cached(conf *config.Config, hex string) bool {
	return utils.ValidFile(conf.BlobPath(hex)) && utils.ValidFile(conf.LayerPath(hex))
}

// fetchLayer downloads and extracts one layer into workDir, reporting under
// the layer's short digest. A failure is reported to the handler before it
// is returned, unless the pull is already being torn down.
func fetchLayer(ctx context.Context, conf *config.Config, em *emitter, layer v1.Layer, workDir string, res *layerResult) (err error) {
	logger := log.WithFunc("registry.fetchLayer")

	d, err := layer.Digest()
	if err != nil {
		return fmt.Errorf("get layer digest: %w", err)
	}
	res.digest = images.NewDigest(d.Hex)
	id := res.digest.Short()

	defer func() {
		if err == nil {
			return
		}
		if ctx.Err() != nil {
			// Let the handler notice the cancellation itself.
			_ = em.status(id, "Cancelled")
			return
		}
		_ = em.emit(progress.Message{ID: id, Error: err.Error()})
	}()

	if res.size, err = layer.Size(); err != nil {
		return fmt.Errorf("layer %s: size: %w", id, err)
	}

	if cached(conf, d.Hex) {
		logger.Debugf(ctx, "layer %s already cached", id)
		res.blob, res.tar = conf.BlobPath(d.Hex), conf.LayerPath(d.Hex)
		return em.status(id, progress.AlreadyExists)
	}

	res.blob = filepath.Join(workDir, d.Hex+".blob")
	if err = download(ctx, em, id, layer, uint64(res.size), res.blob); err != nil { //nolint:gosec // size is non-negative
		return err
	}
	res.tar = filepath.Join(workDir, d.Hex+".tar")
	if err = extract(ctx, em, id, res.blob, res.tar); err != nil {
		return err
	}
	return em.status(id, progress.PullComplete)
}

func download(ctx context.Context, em *emitter, id string, layer v1.Layer, total uint64, dst string) error {
	report := func(n uint64) error {
		return em.emit(progress.Message{
			ID:       id,
			Status:   progress.Downloading,
			Progress: fmt.Sprintf("%s/%s", units.HumanSize(float64(n)), units.HumanSize(float64(total))),
			Detail:   &progress.Detail{Current: n, Total: total},
		})
	}
	if err := report(0); err != nil {
		return err
	}

	rc, err := layer.Compressed()
	if err != nil {
		return fmt.Errorf("layer %s: open: %w", id, err)
	}
	defer rc.Close() //nolint:errcheck

	// Closing the reader on its own cannot interrupt a stalled body read.
	stop := context.AfterFunc(ctx, func() { _ = rc.Close() })
	defer stop()

	// Digest verification happens on EOF inside rc.
	if err := copyTo(dst, &progressReader{r: rc, report: report, ctx: ctx}); err != nil {
		return fmt.Errorf("layer %s: download: %w", id, err)
	}
	if err := em.status(id, progress.VerifyingChecksum); err != nil {
		return err
	}
	return em.status(id, progress.DownloadComplete)
}

func extract(ctx context.Context, em *emitter, id, blob, dst string) error {
	report := func(n uint64) error {
		return em.emit(progress.Message{
			ID:       id,
			Status:   progress.Extracting,
			Progress: progress.Extracting + " " + units.HumanSize(float64(n)),
			Detail:   &progress.Detail{Current: n},
		})
	}
	if err := report(0); err != nil {
		return err
	}

	layer, err := tarball.LayerFromFile(blob)
	if err != nil {
		return fmt.Errorf("layer %s: open blob: %w", id, err)
	}
	rc, err := layer.Uncompressed()
	if err != nil {
		return fmt.Errorf("layer %s: decompress: %w", id, err)
	}
	defer rc.Close() //nolint:errcheck

	if err := copyTo(dst, &progressReader{r: rc, report: report, ctx: ctx}); err != nil {
		return fmt.Errorf("layer %s: extract: %w", id, err)
	}
	return nil
}

func copyTo(dst string, r io.Reader) error {
	f, err := os.Create(dst) //nolint:gosec // work dir path
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// progressReader reports the running byte count every reportEvery bytes
// and once more at EOF. A report error aborts the copy.
type progressReader struct {
	r      io.Reader
	report func(n uint64) error
	ctx    context.Context //nolint:containedctx // checked between reads

	n, last uint64
}

func (p *progressReader) Read(b []byte) (int, error) {
	if p.ctx != nil {
		if err := p.ctx.Err(); err != nil {
			return 0, err
		}
	}
	n, err := p.r.Read(b)
	p.n += uint64(n) //nolint:gosec // n is non-negative
	if p.n-p.last >= reportEvery || (errors.Is(err, io.EOF) && p.n != p.last) {
		p.last = p.n
		if rerr := p.report(p.n); rerr != nil {
			return n, rerr
		}
	}
	return n, err
}

// commit moves staged artifacts into place and records ref. It runs under
// the index lock, so a concurrent GC cannot remove a cached artifact
// between the check and the write.
func commit(conf *config.Config, idx *imageIndex, ref string, manifest images.Digest, results []layerResult) error {
	layers := make([]layerEntry, 0, len(results))
	for _, r := range results {
		hex := r.digest.Hex()
		if err := place(r.blob, conf.BlobPath(hex)); err != nil {
			return fmt.Errorf("commit blob %s: %w", r.digest.Short(), err)
		}
		if err := place(r.tar, conf.LayerPath(hex)); err != nil {
			return fmt.Errorf("commit layer %s: %w", r.digest.Short(), err)
		}
		if !cached(conf, hex) {
			return fmt.Errorf("layer %s missing after commit (concurrent GC?)", r.digest.Short())
		}
		layers = append(layers, layerEntry{Digest: r.digest, Size: r.size})
	}
	idx.Images[ref] = &imageEntry{
		Ref:            ref,
		ManifestDigest: manifest,
		Layers:         layers,
		CreatedAt:      time.Now().UTC(),
	}
	return nil
}

func place(src, dst string) error {
	if src == dst {
		return nil
	}
	return os.Rename(src, dst)
}
