package sharedbuf

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuffer_ReserveSequence(t *testing.T) {
	// 100 data bytes after the 8-byte header.
	b, err := New(100)
	require.NoError(t, err)
	defer b.Close()

	off1, err := b.TryReserve(50)
	require.NoError(t, err)
	off2, err := b.TryReserve(50)
	require.NoError(t, err)

	// Non-overlapping, inside [HeaderSize, capacity).
	require.NotEqual(t, off1, off2)
	lo, hi := off1, off2
	if lo > hi {
		lo, hi = hi, lo
	}
	require.GreaterOrEqual(t, lo, HeaderSize)
	require.GreaterOrEqual(t, hi, lo+50)
	require.LessOrEqual(t, hi+50, HeaderSize+100)

	// Third reservation exceeds capacity.
	_, err = b.TryReserve(50)
	require.ErrorIs(t, err, ErrBufferFull)

	// Full reservations do not consume capacity.
	require.Equal(t, 100, b.Len())
}

func TestBuffer_ConcurrentReservationsDisjoint(t *testing.T) {
	const (
		writers = 16
		perSize = 7
		each    = 64
	)

	b, err := New(writers * perSize * each)
	require.NoError(t, err)
	defer b.Close()

	offsets := make([][]int, writers)
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < each; i++ {
				off, err := b.TryReserve(perSize)
				if err != nil {
					continue
				}
				offsets[w] = append(offsets[w], off)
				b.WriteAt(off, []byte{byte(w), 1, 2, 3, 4, 5, 6})
			}
			b.MarkWorkerDone()
		}(w)
	}
	wg.Wait()

	require.True(t, b.Done(writers))

	seen := make(map[int]struct{})
	total := 0
	for _, offs := range offsets {
		for _, off := range offs {
			require.GreaterOrEqual(t, off, HeaderSize)
			require.LessOrEqual(t, off+perSize, HeaderSize+b.Cap())
			// Every byte of the range must be unclaimed by any other writer.
			for i := 0; i < perSize; i++ {
				_, dup := seen[off+i]
				require.False(t, dup, "overlapping reservation at %d", off+i)
				seen[off+i] = struct{}{}
			}
			total++
		}
	}
	// Capacity was sized exactly, so every reservation must have succeeded
	// barring contention-budget misses; all granted ranges stay disjoint
	// regardless.
	require.Equal(t, total*perSize, b.Len())
}

func TestBuffer_SnapshotRoundTrip(t *testing.T) {
	b, err := New(64)
	require.NoError(t, err)
	defer b.Close()

	payload := []byte("hello shared buffer")
	off, err := b.TryReserve(len(payload))
	require.NoError(t, err)
	b.WriteAt(off, payload)
	b.MarkWorkerDone()

	require.True(t, b.Done(1))
	require.False(t, b.Done(2))

	snap := b.Snapshot()
	require.Len(t, snap, len(payload))
	require.Equal(t, payload, snap)
}

func TestBuffer_ContentionBudget(t *testing.T) {
	b, err := New(64, WithMaxReserveAttempts(1))
	require.NoError(t, err)
	defer b.Close()

	// A single attempt with no contention still succeeds.
	_, err = b.TryReserve(8)
	require.NoError(t, err)
}

func TestBuffer_InvalidSizes(t *testing.T) {
	_, err := New(0)
	require.Error(t, err)

	b, err := New(16)
	require.NoError(t, err)
	defer b.Close()

	_, err = b.TryReserve(0)
	require.Error(t, err)
	_, err = b.TryReserve(-1)
	require.Error(t, err)
}

func TestBuffer_Mapped(t *testing.T) {
	b, err := New(4096, WithMapped(true))
	require.NoError(t, err)

	off, err := b.TryReserve(4)
	require.NoError(t, err)
	b.WriteAt(off, []byte("abcd"))
	b.MarkWorkerDone()
	require.Equal(t, []byte("abcd"), b.Snapshot())

	require.NoError(t, b.Close())

	// Closed buffers refuse reservations.
	_, err = b.TryReserve(4)
	require.ErrorIs(t, err, ErrClosed)
}

func TestBuffer_Closed(t *testing.T) {
	b, err := New(16)
	require.NoError(t, err)
	require.NoError(t, b.Close())
	require.NoError(t, b.Close()) // idempotent

	_, err = b.TryReserve(4)
	require.ErrorIs(t, err, ErrClosed)
}
