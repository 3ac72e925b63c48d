// Package kmeans implements the partitioned k-means engine.
//
// The engine runs Lloyd's algorithm in min-max normalized space: points are
// rescaled into [0,1] per dimension, centroids are initialized uniformly at
// random in the unit cube, and the assignment step is partitioned into
// contiguous index ranges across a fixed worker pool. Assignment results are
// order-independent by construction (they are grouped by centroid index),
// so workers are joined with an unordered wait-for-all.
package kmeans

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/fergl/geoclust/distance"
	"github.com/fergl/geoclust/internal/pool"
	"github.com/fergl/geoclust/model"
)

const (
	// DefaultMaxIterations caps the clustering loop.
	DefaultMaxIterations = 100

	// DefaultThreshold is the convergence threshold in normalized space.
	// A centroid moving by exactly the threshold is NOT converged; only
	// strictly smaller movement counts.
	DefaultThreshold = 0.01

	// MaxWorkers bounds the assignment parallelism.
	MaxWorkers = 8
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("kmeans: k must be positive")

	// ErrInsufficientData is returned when there are fewer points than
	// clusters. No computation is attempted.
	ErrInsufficientData = errors.New("kmeans: fewer points than clusters")
)

// IterationFunc observes intermediate state after every iteration.
// Centroids are denormalized to original units.
type IterationFunc func(iteration int, clusters [][]int, centroids []model.Centroid, converged bool)

// Engine clusters points into k groups.
type Engine struct {
	k           int
	maxIter     int
	threshold   float64
	workers     int
	rng         *rand.Rand
	logger      *slog.Logger
	onIteration IterationFunc
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxIterations caps the clustering loop.
func WithMaxIterations(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxIter = n
		}
	}
}

// WithThreshold sets the convergence threshold in normalized space.
func WithThreshold(t float64) Option {
	return func(e *Engine) {
		if t > 0 {
			e.threshold = t
		}
	}
}

// WithWorkers sets the assignment worker count (capped at MaxWorkers).
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = min(n, MaxWorkers)
		}
	}
}

// WithSeed seeds centroid initialization for reproducible runs.
func WithSeed(seed int64) Option {
	return func(e *Engine) {
		e.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // not cryptographic
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithOnIteration registers the per-iteration callback.
func WithOnIteration(fn IterationFunc) Option {
	return func(e *Engine) { e.onIteration = fn }
}

// New creates an Engine for k clusters.
func New(k int, opts ...Option) (*Engine, error) {
	if k < 1 {
		return nil, ErrInvalidK
	}
	e := &Engine{
		k:         k,
		maxIter:   DefaultMaxIterations,
		threshold: DefaultThreshold,
		workers:   min(runtime.GOMAXPROCS(0), MaxWorkers),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // not cryptographic
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// assignment maps one point to its nearest centroid.
type assignment struct {
	centroid int
	distance float64
}

// Run clusters the points, returning cluster membership, denormalized
// centroids, the iteration count and the convergence flag.
func (e *Engine) Run(ctx context.Context, points []model.Point) (*model.ClusteringResult, error) {
	if len(points) < e.k {
		return nil, fmt.Errorf("%w: %d points for k=%d", ErrInsufficientData, len(points), e.k)
	}

	b := computeBounds(points)
	norm := normalizePoints(points, b)

	centroids := make([][]float64, e.k)
	for i := range centroids {
		centroids[i] = e.randomCentroid()
	}

	p := pool.New(min(e.workers, len(points)))
	defer p.Close()

	e.logger.Debug("clustering started", "points", len(points), "k", e.k, "workers", p.Size())

	var clusters [][]int
	converged := false
	iterations := 0

	for iter := 0; iter < e.maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		assigns, err := e.assign(ctx, p, norm, centroids)
		if err != nil {
			return nil, err
		}
		clusters = groupByCentroid(assigns, e.k)

		next := e.recompute(clusters, norm, centroids)
		converged = e.convergedAll(centroids, next)
		centroids = next
		iterations = iter + 1

		if e.onIteration != nil {
			e.onIteration(iterations, clusters, denormalizeCentroids(centroids, b), converged)
		}
		if converged {
			break
		}
	}

	if !converged {
		// Iteration cap reached: one final assignment pass so membership
		// matches the returned centroids.
		assigns, err := e.assign(ctx, p, norm, centroids)
		if err != nil {
			return nil, err
		}
		clusters = groupByCentroid(assigns, e.k)
	}

	e.logger.Debug("clustering finished", "iterations", iterations, "converged", converged)

	return &model.ClusteringResult{
		Clusters:   clusters,
		Centroids:  denormalizeCentroids(centroids, b),
		Iterations: iterations,
		Converged:  converged,
	}, nil
}

// assign partitions the point set into contiguous index ranges and computes
// the nearest centroid per point on the worker pool. One worker's failure
// fails the whole step.
func (e *Engine) assign(ctx context.Context, p *pool.Pool, points, centroids [][]float64) ([]assignment, error) {
	out := make([]assignment, len(points))

	workers := min(p.Size(), len(points))
	per := (len(points) + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * per
		end := min(start+per, len(points))
		if start >= end {
			break
		}

		wg.Add(1)
		task := func() {
			defer wg.Done()
			// Each worker writes a disjoint slice segment; no lock needed.
			for i := start; i < end; i++ {
				best, dist := nearest(points[i], centroids)
				out[i] = assignment{centroid: best, distance: dist}
			}
		}
		if err := p.Submit(ctx, task); err != nil {
			wg.Done()
			return nil, err
		}
	}
	wg.Wait()

	return out, nil
}

// nearest returns the index of the closest centroid and its distance.
func nearest(point []float64, centroids [][]float64) (int, float64) {
	best := -1
	minDist := math.MaxFloat64
	for c, centroid := range centroids {
		if d := distance.Euclidean(point, centroid); d < minDist {
			minDist = d
			best = c
		}
	}
	return best, minDist
}

// groupByCentroid folds per-point assignments into membership lists.
func groupByCentroid(assigns []assignment, k int) [][]int {
	clusters := make([][]int, k)
	for i, a := range assigns {
		clusters[a.centroid] = append(clusters[a.centroid], i)
	}
	return clusters
}

// recompute derives next-iteration centroids as coordinate-wise means.
// An empty cluster keeps the previous centroid, or gets a fresh random one
// if none existed.
func (e *Engine) recompute(clusters [][]int, points, prev [][]float64) [][]float64 {
	next := make([][]float64, len(clusters))
	for c, members := range clusters {
		if len(members) == 0 {
			if c < len(prev) && prev[c] != nil {
				next[c] = slices.Clone(prev[c])
			} else {
				next[c] = e.randomCentroid()
			}
			continue
		}

		mean := make([]float64, dims)
		for _, i := range members {
			for d := 0; d < dims; d++ {
				mean[d] += points[i][d]
			}
		}
		for d := 0; d < dims; d++ {
			mean[d] /= float64(len(members))
		}
		next[c] = mean
	}
	return next
}

// convergedAll reports whether every centroid moved strictly less than the
// threshold. Movement of exactly the threshold fails convergence.
func (e *Engine) convergedAll(prev, next [][]float64) bool {
	for i := range prev {
		if distance.Euclidean(prev[i], next[i]) >= e.threshold {
			return false
		}
	}
	return true
}

func (e *Engine) randomCentroid() []float64 {
	c := make([]float64, dims)
	for d := range c {
		c[d] = e.rng.Float64()
	}
	return c
}
