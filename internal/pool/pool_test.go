package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPool_RunsTasks(t *testing.T) {
	p := New(4)
	defer p.Close()

	var count atomic.Int64
	var wg sync.WaitGroup
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		wg.Add(1)
		err := p.Submit(ctx, func() {
			defer wg.Done()
			count.Add(1)
		})
		require.NoError(t, err)
	}
	wg.Wait()

	require.Equal(t, int64(100), count.Load())
}

func TestPool_SubmitAfterClose(t *testing.T) {
	p := New(1)
	p.Close()
	p.Close() // idempotent

	err := p.Submit(context.Background(), func() {})
	require.ErrorIs(t, err, ErrClosed)
}

func TestPool_SubmitCancelledContext(t *testing.T) {
	p := New(1)
	defer p.Close()

	// Occupy the single worker and fill the queue so Submit must block.
	block := make(chan struct{})
	started := make(chan struct{})
	ctx := context.Background()
	require.NoError(t, p.Submit(ctx, func() { close(started); <-block }))
	<-started
	for {
		if err := p.Submit(ctx, func() {}); err != nil {
			t.Fatalf("unexpected submit error: %v", err)
		}
		if len(p.workCh) == cap(p.workCh) {
			break
		}
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Submit(cancelled, func() {})
	require.ErrorIs(t, err, context.Canceled)

	close(block)
}
