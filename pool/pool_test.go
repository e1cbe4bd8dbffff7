package pool

import (
	"context"
	"testing"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitRejectsWhenFull(t *testing.T) {
	p, err := New(context.Background(), 1)
	require.NoError(t, err)

	started := make(chan struct{})
	block := make(chan struct{})
	require.NoError(t, p.Submit(func() {
		close(started)
		<-block
	}))
	<-started
	assert.Equal(t, 1, p.Running())

	err = p.Submit(func() {})
	assert.ErrorIs(t, err, ants.ErrPoolOverload)

	close(block)
	require.NoError(t, p.Release(5*time.Second))
	assert.ErrorIs(t, p.Submit(func() {}), ants.ErrPoolClosed)
}

func TestPanicDoesNotKillPool(t *testing.T) {
	p, err := New(context.Background(), 2)
	require.NoError(t, err)
	defer p.Release(time.Second) //nolint:errcheck

	require.NoError(t, p.Submit(func() { panic("boom") }))
	done := make(chan struct{})
	require.NoError(t, p.Submit(func() { close(done) }))
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pool stopped running tasks after a panic")
	}
}
