package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projecteru2/pullwatch/types"
)

type lister struct {
	typ   string
	calls atomic.Int32
	gate  chan struct{}
	err   error

	mu   sync.Mutex
	imgs []*types.Image
}

func (l *lister) Type() string { return l.typ }

func (l *lister) List(context.Context) ([]*types.Image, error) {
	l.calls.Add(1)
	if l.gate != nil {
		<-l.gate
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*types.Image(nil), l.imgs...), l.err
}

func (l *lister) set(names ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.imgs = nil
	for _, n := range names {
		l.imgs = append(l.imgs, &types.Image{Name: n, Type: l.typ})
	}
}

func names(imgs []*types.Image) []string {
	out := make([]string, len(imgs))
	for i, img := range imgs {
		out[i] = img.Name
	}
	return out
}

func TestImagesLoadsOnceAndSorts(t *testing.T) {
	l := &lister{typ: "registry"}
	l.set("zeta", "alpha")
	c := New(context.Background(), l)

	imgs, err := c.Images(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, names(imgs))

	_, err = c.Images(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, l.calls.Load())
}

func TestRefreshSkipsWhenLoaded(t *testing.T) {
	l := &lister{typ: "registry"}
	c := New(context.Background(), l)
	_, err := c.Images(context.Background())
	require.NoError(t, err)

	c.Refresh(false)
	c.Wait()
	assert.EqualValues(t, 1, l.calls.Load())

	l.set("new")
	c.Refresh(true)
	c.Wait()
	assert.EqualValues(t, 2, l.calls.Load())
	imgs, err := c.Images(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, names(imgs))
}

func TestConcurrentRefreshesCollapse(t *testing.T) {
	l := &lister{typ: "registry", gate: make(chan struct{})}
	c := New(context.Background(), l)
	for range 10 {
		c.Refresh(true)
	}
	require.Eventually(t, func() bool { return l.calls.Load() >= 1 }, time.Second, time.Millisecond)
	// let the other refreshes join the blocked load
	time.Sleep(50 * time.Millisecond)
	close(l.gate)
	c.Wait()
	assert.Less(t, l.calls.Load(), int32(10))
}

func TestImagesPropagatesError(t *testing.T) {
	boom := errors.New("index corrupt")
	c := New(context.Background(), &lister{typ: "registry", err: boom})
	_, err := c.Images(context.Background())
	assert.ErrorIs(t, err, boom)
	c.Refresh(false)
	c.Wait()
}

func TestImagesHonoursContext(t *testing.T) {
	l := &lister{typ: "registry", gate: make(chan struct{})}
	defer close(l.gate)
	c := New(context.Background(), l)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Images(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
