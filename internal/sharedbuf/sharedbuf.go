// Package sharedbuf implements the fixed-capacity append buffer shared by
// collection workers.
//
// # Layout
//
// The buffer is a single contiguous byte region: an 8-byte header followed
// by record data. The header holds two 32-bit control words, writeCursor
// (next free offset, initialized to HeaderSize) and completedWorkers,
// accessed only through sync/atomic.
//
// # Concurrency Model
//
// Any number of writers may reserve and fill ranges concurrently; there are
// no locks. Reservation is bounded-retry lock-free bump allocation: load the
// cursor, compare-and-swap it forward by the requested size, retry on
// contention. A successful reservation grants the caller exclusive ownership
// of the byte range, so the subsequent WriteAt is a plain copy. Completion
// is join-free: each worker increments completedWorkers once, and a single
// reader polls Done. Snapshot is only valid once Done reports true —
// earlier calls may observe a partially written tail record.
package sharedbuf

import (
	"errors"
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/fergl/geoclust/internal/mmap"
)

const (
	// HeaderSize is the number of bytes reserved for the control words.
	HeaderSize = 8

	// DefaultMaxReserveAttempts bounds the CAS retry loop.
	DefaultMaxReserveAttempts = 64
)

var (
	// ErrBufferFull is returned when a reservation would exceed capacity.
	// No partial reservation happens; the caller may buffer locally.
	ErrBufferFull = errors.New("sharedbuf: buffer full")

	// ErrContention is returned when the CAS retry budget is exhausted.
	// Callers treat it the same as ErrBufferFull.
	ErrContention = errors.New("sharedbuf: reservation retry budget exhausted")

	// ErrClosed is returned when the buffer has been closed.
	ErrClosed = errors.New("sharedbuf: closed")
)

// Buffer is a fixed-capacity lock-free append buffer.
type Buffer struct {
	data    []byte
	mapping *mmap.Mapping // non-nil when off-heap backed

	cursor *atomic.Uint32 // header word 0: next free offset
	done   *atomic.Uint32 // header word 1: completed worker count

	maxAttempts int
	closed      atomic.Bool
}

// Option configures a Buffer.
type Option func(*config)

type config struct {
	mapped      bool
	maxAttempts int
}

// WithMapped selects an anonymous memory mapping as the backing store
// instead of a heap slice. If the mapping cannot be created the buffer
// falls back to the heap.
func WithMapped(mapped bool) Option {
	return func(c *config) { c.mapped = mapped }
}

// WithMaxReserveAttempts overrides the CAS retry budget.
func WithMaxReserveAttempts(n int) Option {
	return func(c *config) { c.maxAttempts = n }
}

// New creates a buffer with room for size data bytes after the header.
func New(size int, opts ...Option) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("sharedbuf: invalid data size %d", size)
	}

	cfg := config{maxAttempts: DefaultMaxReserveAttempts}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxAttempts <= 0 {
		cfg.maxAttempts = DefaultMaxReserveAttempts
	}

	capacity := HeaderSize + size
	b := &Buffer{maxAttempts: cfg.maxAttempts}

	if cfg.mapped {
		if m, err := mmap.MapAnon(capacity); err == nil {
			b.mapping = m
			b.data = m.Bytes()
		}
	}
	if b.data == nil {
		b.data = make([]byte, capacity)
	}

	// The control words live inside the header region. Heap allocations and
	// page mappings are both at least 8-byte aligned, which satisfies the
	// 4-byte alignment atomic 32-bit ops require.
	b.cursor = (*atomic.Uint32)(unsafe.Pointer(&b.data[0])) //nolint:gosec // header word access
	b.done = (*atomic.Uint32)(unsafe.Pointer(&b.data[4]))   //nolint:gosec // header word access

	b.cursor.Store(HeaderSize)
	b.done.Store(0)

	return b, nil
}

// TryReserve atomically reserves an exclusive size-byte range and returns
// its offset.
//
// The loop is bounded: capacity overrun returns ErrBufferFull immediately,
// losing the CAS race retries with a freshly observed cursor, and exceeding
// the retry budget returns ErrContention. Neither failure corrupts the
// buffer or loses already written data.
func (b *Buffer) TryReserve(size int) (int, error) {
	if b.closed.Load() {
		return 0, ErrClosed
	}
	if size <= 0 || size > len(b.data) {
		return 0, fmt.Errorf("sharedbuf: invalid reservation size %d", size)
	}

	for attempt := 0; attempt < b.maxAttempts; attempt++ {
		old := b.cursor.Load()
		next := old + uint32(size) //nolint:gosec // size bounded by len(b.data)
		if int(next) > len(b.data) {
			return 0, ErrBufferFull
		}
		if b.cursor.CompareAndSwap(old, next) {
			return int(old), nil
		}
	}
	return 0, ErrContention
}

// WriteAt copies p into a previously reserved range. The write is plain,
// not atomic: reservations never overlap, so the range is exclusively owned.
func (b *Buffer) WriteAt(off int, p []byte) {
	copy(b.data[off:off+len(p)], p)
}

// MarkWorkerDone records that one writer has finished. Monotonic.
func (b *Buffer) MarkWorkerDone() {
	b.done.Add(1)
}

// Done reports whether all expected writers have finished.
func (b *Buffer) Done(expected int) bool {
	return int(b.done.Load()) == expected
}

// Snapshot returns the filled region [HeaderSize, writeCursor).
// Only valid once Done reports true.
func (b *Buffer) Snapshot() []byte {
	return b.data[HeaderSize:b.cursor.Load()]
}

// Len returns the number of data bytes written so far.
func (b *Buffer) Len() int {
	return int(b.cursor.Load()) - HeaderSize
}

// Cap returns the data capacity after the header.
func (b *Buffer) Cap() int {
	return len(b.data) - HeaderSize
}

// Mapped reports whether the buffer is backed by an anonymous mapping.
func (b *Buffer) Mapped() bool {
	return b.mapping != nil
}

// Close releases the backing store. Not concurrent-safe with reservations.
func (b *Buffer) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	if b.mapping != nil {
		// The control words point into the mapping; drop them first.
		b.cursor = nil
		b.done = nil
		b.data = nil
		return b.mapping.Close()
	}
	return nil
}
