package kmeans

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fergl/geoclust/model"
)

// twoBlobs builds two well-separated groups of n points each.
func twoBlobs(n int, seed int64) []model.Point {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // test data
	points := make([]model.Point, 0, 2*n)
	for i := 0; i < n; i++ {
		points = append(points, model.Point{
			Latitude:   10 + rng.Float64(),
			Longitude:  10 + rng.Float64(),
			Population: 1000 + rng.Float64()*100,
		})
		points = append(points, model.Point{
			Latitude:   60 + rng.Float64(),
			Longitude:  -120 + rng.Float64(),
			Population: 500000 + rng.Float64()*1000,
		})
	}
	return points
}

func TestRun_SeparatedGroups(t *testing.T) {
	points := twoBlobs(10, 1)

	e, err := New(2, WithSeed(42))
	require.NoError(t, err)

	result, err := e.Run(context.Background(), points)
	require.NoError(t, err)

	require.True(t, result.Converged)
	require.LessOrEqual(t, result.Iterations, 50)
	require.Len(t, result.Centroids, 2)
	require.Len(t, result.Clusters, 2)

	// Every point assigned exactly once.
	assigned := make(map[int]bool)
	for _, members := range result.Clusters {
		for _, i := range members {
			require.False(t, assigned[i])
			assigned[i] = true
		}
	}
	require.Len(t, assigned, len(points))

	// Denormalized centroids land inside the input bounding box.
	for _, c := range result.Centroids {
		require.GreaterOrEqual(t, c.Latitude, 10.0)
		require.LessOrEqual(t, c.Latitude, 61.0)
		require.GreaterOrEqual(t, c.Longitude, -120.0)
		require.LessOrEqual(t, c.Longitude, 11.0)
		require.GreaterOrEqual(t, c.Population, 1000.0)
		require.LessOrEqual(t, c.Population, 501000.0)
	}
}

func TestRun_Deterministic(t *testing.T) {
	points := twoBlobs(15, 7)

	run := func() *model.ClusteringResult {
		e, err := New(3, WithSeed(99), WithWorkers(4))
		require.NoError(t, err)
		result, err := e.Run(context.Background(), points)
		require.NoError(t, err)
		return result
	}

	first := run()
	second := run()
	require.Equal(t, first.Centroids, second.Centroids)
	require.Equal(t, first.Clusters, second.Clusters)
	require.Equal(t, first.Iterations, second.Iterations)
}

func TestRun_InsufficientData(t *testing.T) {
	e, err := New(5)
	require.NoError(t, err)

	points := twoBlobs(2, 3) // 4 points for k=5
	_, err = e.Run(context.Background(), points)
	require.ErrorIs(t, err, ErrInsufficientData)
}

func TestNew_InvalidK(t *testing.T) {
	_, err := New(0)
	require.ErrorIs(t, err, ErrInvalidK)
	_, err = New(-3)
	require.ErrorIs(t, err, ErrInvalidK)
}

func TestRun_SinglePointDimensionCollapse(t *testing.T) {
	// All points share the same population: the zero-range dimension must not
	// produce NaN coordinates.
	points := []model.Point{
		{Latitude: 1, Longitude: 1, Population: 500},
		{Latitude: 2, Longitude: 2, Population: 500},
		{Latitude: 50, Longitude: 50, Population: 500},
		{Latitude: 51, Longitude: 51, Population: 500},
	}

	e, err := New(2, WithSeed(1))
	require.NoError(t, err)

	result, err := e.Run(context.Background(), points)
	require.NoError(t, err)
	for _, c := range result.Centroids {
		require.False(t, c.Population != c.Population, "population must not be NaN")
	}
}

func TestRun_IterationCallback(t *testing.T) {
	points := twoBlobs(10, 5)

	var calls int
	var lastConverged bool
	e, err := New(2,
		WithSeed(11),
		WithOnIteration(func(iteration int, clusters [][]int, centroids []model.Centroid, converged bool) {
			calls++
			require.Equal(t, calls, iteration)
			require.Len(t, clusters, 2)
			require.Len(t, centroids, 2)
			lastConverged = converged
		}),
	)
	require.NoError(t, err)

	result, err := e.Run(context.Background(), points)
	require.NoError(t, err)
	require.Equal(t, result.Iterations, calls)
	require.Equal(t, result.Converged, lastConverged)
}

func TestRun_MaxIterations(t *testing.T) {
	points := twoBlobs(20, 13)

	e, err := New(4, WithSeed(3), WithMaxIterations(1))
	require.NoError(t, err)

	result, err := e.Run(context.Background(), points)
	require.NoError(t, err)
	require.Equal(t, 1, result.Iterations)

	// Membership still covers every point after the final assignment pass.
	total := 0
	for _, members := range result.Clusters {
		total += len(members)
	}
	require.Equal(t, len(points), total)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e, err := New(2, WithSeed(1))
	require.NoError(t, err)

	_, err = e.Run(ctx, twoBlobs(5, 1))
	require.ErrorIs(t, err, context.Canceled)
}

func TestConvergedAll_ThresholdIsStrict(t *testing.T) {
	e, err := New(1, WithThreshold(0.01))
	require.NoError(t, err)

	prev := [][]float64{{0, 0, 0}}

	// Movement of exactly the threshold is not convergence.
	require.False(t, e.convergedAll(prev, [][]float64{{0.01, 0, 0}}))

	// Strictly smaller movement is.
	require.True(t, e.convergedAll(prev, [][]float64{{0.0099, 0, 0}}))
}

func TestRecompute_EmptyClusterKeepsPreviousCentroid(t *testing.T) {
	e, err := New(2, WithSeed(1))
	require.NoError(t, err)

	points := [][]float64{{0.1, 0.1, 0.1}, {0.2, 0.2, 0.2}}
	prev := [][]float64{{0.5, 0.5, 0.5}, {0.9, 0.9, 0.9}}
	clusters := [][]int{{0, 1}, {}}

	next := e.recompute(clusters, points, prev)
	require.InDelta(t, 0.15, next[0][0], 1e-9)
	require.Equal(t, prev[1], next[1])
}
