// Package collector implements the collection coordinator: it partitions the
// upstream page range across parallel workers, wires each worker to the
// shared append buffer, aggregates progress, detects completion and
// deduplicates the final record set.
package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fergl/geoclust/codec"
	"github.com/fergl/geoclust/fetch"
	"github.com/fergl/geoclust/internal/sharedbuf"
	"github.com/fergl/geoclust/model"
)

const (
	// DefaultWorkers is 1: the upstream budget in the default configuration
	// allows roughly one request per pacing interval, so parallel workers
	// only multiply 429 responses. The partitioner supports any N >= 1.
	DefaultWorkers = 1

	// DefaultPollInterval is the completion poll period.
	DefaultPollInterval = 100 * time.Millisecond

	// DefaultTimeout bounds a whole collection run.
	DefaultTimeout = 600 * time.Second

	// DefaultAvgRecordSize sizes the shared buffer and drives the
	// approximate collected-count figure in progress events.
	DefaultAvgRecordSize = 200
)

// ErrTimeout is returned when workers do not finish within the global
// timeout. Partial buffer contents are discarded, not returned.
var ErrTimeout = errors.New("collector: collection timed out")

// Progress is the aggregated view delivered to the caller's callback.
// Collected is an estimate derived from the buffer fill ratio, not an exact
// count.
type Progress struct {
	Percent     float64
	Workers     int
	CurrentPage int
	TotalPages  int
	Collected   int
	RateLimited bool
	Wait        time.Duration
	Completed   bool
}

// ProgressFunc receives progress updates. Calls are serialized.
type ProgressFunc func(Progress)

// Coordinator drives a collection run.
type Coordinator struct {
	client        *fetch.Client
	codec         codec.Codec
	logger        *slog.Logger
	workers       int
	pollInterval  time.Duration
	timeout       time.Duration
	avgRecordSize int
	sharedBuffer  bool
	mappedBuffer  bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithWorkers sets the number of parallel collection workers.
func WithWorkers(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithPollInterval sets the completion poll period.
func WithPollInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithTimeout sets the global collection timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithAvgRecordSize overrides the assumed average encoded record size.
func WithAvgRecordSize(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.avgRecordSize = n
		}
	}
}

// WithSharedBuffer toggles the lock-free shared buffer. When disabled the
// coordinator falls back to private per-worker slices and forces a single
// worker.
func WithSharedBuffer(enabled bool) Option {
	return func(c *Coordinator) { c.sharedBuffer = enabled }
}

// WithMappedBuffer backs the shared buffer with an anonymous memory mapping.
func WithMappedBuffer(mapped bool) Option {
	return func(c *Coordinator) { c.mappedBuffer = mapped }
}

// WithCodec sets the record codec.
func WithCodec(cd codec.Codec) Option {
	return func(c *Coordinator) {
		if cd != nil {
			c.codec = cd
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Coordinator around the given fetch client.
func New(client *fetch.Client, opts ...Option) (*Coordinator, error) {
	if client == nil {
		return nil, errors.New("collector: fetch client is required")
	}
	c := &Coordinator{
		client:        client,
		codec:         codec.Default,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		workers:       DefaultWorkers,
		pollInterval:  DefaultPollInterval,
		timeout:       DefaultTimeout,
		avgRecordSize: DefaultAvgRecordSize,
		sharedBuffer:  true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// pageRange is an inclusive, contiguous sub-range of the page range.
type pageRange struct {
	start, end int
}

func (r pageRange) pages() int { return r.end - r.start + 1 }

// partitionPages splits [1, totalPages] into workers contiguous,
// non-overlapping sub-ranges.
func partitionPages(totalPages, workers int) []pageRange {
	per := totalPages / workers
	extra := totalPages % workers

	ranges := make([]pageRange, 0, workers)
	start := 1
	for w := 0; w < workers; w++ {
		size := per
		if w < extra {
			size++
		}
		ranges = append(ranges, pageRange{start: start, end: start + size - 1})
		start += size
	}
	return ranges
}

// Collect fetches up to target records in pages of pageSize and returns the
// deduplicated set. Per-page failures are logged and skipped; only fatal
// upstream errors and the global timeout abort the run.
func (co *Coordinator) Collect(ctx context.Context, target, pageSize int, onProgress ProgressFunc) ([]*model.Record, error) {
	if target < 1 || pageSize < 1 {
		return nil, fmt.Errorf("collector: invalid target %d / page size %d", target, pageSize)
	}

	totalPages := (target + pageSize - 1) / pageSize
	workers := co.workers
	if !co.sharedBuffer {
		workers = 1
	}
	if workers > totalPages {
		workers = totalPages
	}

	ctx, cancel := context.WithTimeout(ctx, co.timeout)
	defer cancel()

	var buf *sharedbuf.Buffer
	if co.sharedBuffer {
		b, err := sharedbuf.New(target*co.avgRecordSize, sharedbuf.WithMapped(co.mappedBuffer))
		if err != nil {
			return nil, err
		}
		buf = b
		defer buf.Close()
	}

	co.logger.Info("collection started",
		"target", target, "page_size", pageSize,
		"total_pages", totalPages, "workers", workers,
		"shared_buffer", buf != nil,
	)

	var (
		progressMu sync.Mutex
		pagesDone  atomic.Int64
	)
	report := func(p Progress) {
		if onProgress == nil {
			return
		}
		progressMu.Lock()
		defer progressMu.Unlock()
		onProgress(p)
	}
	percent := func() float64 {
		return 100 * float64(pagesDone.Load()) / float64(totalPages)
	}
	estimate := func(localCount int) int {
		if buf == nil {
			return localCount
		}
		return buf.Len() / co.avgRecordSize
	}

	ranges := partitionPages(totalPages, workers)
	overflow := make([][]*model.Record, workers)
	locals := make([][]*model.Record, workers)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		r := ranges[w]
		g.Go(func() error {
			if buf != nil {
				defer buf.MarkWorkerDone()
			}
			return co.runWorker(gctx, workerState{
				id:         w,
				pages:      r,
				pageSize:   pageSize,
				totalPages: totalPages,
				buf:        buf,
				overflow:   &overflow[w],
				local:      &locals[w],
				pagesDone:  &pagesDone,
				report:     report,
				percent:    percent,
				estimate:   estimate,
				workers:    workers,
			})
		})
	}

	// Completion detection is poll-based on the buffer's done counter; the
	// errgroup join below only harvests worker errors.
	if buf != nil {
		ticker := time.NewTicker(co.pollInterval)
		defer ticker.Stop()
	poll:
		for {
			select {
			case <-ctx.Done():
				cancel()
				_ = g.Wait()
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					return nil, fmt.Errorf("%w after %s", ErrTimeout, co.timeout)
				}
				return nil, ctx.Err()
			case <-ticker.C:
				if buf.Done(workers) {
					break poll
				}
			}
		}
	}

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, co.timeout)
		}
		return nil, err
	}

	var records []*model.Record
	if buf != nil {
		decoded, derr := codec.ScanRecords(co.codec, buf.Snapshot())
		if derr != nil {
			// Keep what decoded; the scan stopped at the corrupt frame.
			co.logger.Warn("record scan stopped early", "decoded", len(decoded), "error", derr)
		}
		records = decoded
		for _, of := range overflow {
			records = append(records, of...)
		}
	} else {
		records = locals[0]
	}

	deduped := Dedup(records)
	co.logger.Info("collection finished",
		"records", len(records), "unique", len(deduped),
	)

	report(Progress{
		Percent:    100,
		Workers:    workers,
		TotalPages: totalPages,
		Collected:  len(deduped),
		Completed:  true,
	})
	return deduped, nil
}

type workerState struct {
	id         int
	pages      pageRange
	pageSize   int
	totalPages int
	workers    int
	buf        *sharedbuf.Buffer
	overflow   *[]*model.Record
	local      *[]*model.Record
	pagesDone  *atomic.Int64
	report     func(Progress)
	percent    func() float64
	estimate   func(localCount int) int
}

func (co *Coordinator) runWorker(ctx context.Context, st workerState) error {
	logger := co.logger.With("worker", st.id)

	onEvent := func(e fetch.Event) {
		if e.Kind != fetch.EventRateLimit {
			return
		}
		st.report(Progress{
			Percent:     st.percent(),
			Workers:     st.workers,
			CurrentPage: e.Page,
			TotalPages:  st.totalPages,
			Collected:   st.estimate(len(*st.local)),
			RateLimited: true,
			Wait:        e.Wait,
		})
	}

	for page := st.pages.start; page <= st.pages.end; page++ {
		records, err := co.client.FetchPage(ctx, page, st.pageSize, onEvent)
		if err != nil {
			if errors.Is(err, fetch.ErrAccessDenied) {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// A single page failure is non-fatal; move on.
			logger.Warn("page failed", "page", page, "error", err)
			st.pagesDone.Add(1)
			continue
		}

		for _, rec := range records {
			if !rec.Valid() {
				continue
			}
			if st.buf == nil {
				*st.local = append(*st.local, rec)
				continue
			}
			frame, err := codec.EncodeRecord(co.codec, rec)
			if err != nil {
				logger.Warn("record encode failed", "id", rec.ID, "error", err)
				continue
			}
			off, rerr := st.buf.TryReserve(len(frame))
			if rerr != nil {
				// Buffer full or contention budget spent: not data loss,
				// the record rides along in the worker's overflow list.
				*st.overflow = append(*st.overflow, rec)
				continue
			}
			st.buf.WriteAt(off, frame)
		}

		st.pagesDone.Add(1)
		st.report(Progress{
			Percent:     st.percent(),
			Workers:     st.workers,
			CurrentPage: page,
			TotalPages:  st.totalPages,
			Collected:   st.estimate(len(*st.local)),
		})
	}
	return nil
}
