package testutil

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/fergl/geoclust/model"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)), //nolint:gosec // test utility
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a pseudo-random number in [0,1).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// NormFloat64 returns a standard normal pseudo-random number.
func (r *RNG) NormFloat64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.NormFloat64()
}

// RandomRecord generates a valid geographic record with the given ID.
func RandomRecord(rng *RNG, id int64) *model.Record {
	return &model.Record{
		ID:         id,
		Name:       fmt.Sprintf("city-%06d", id),
		Country:    "XX",
		Latitude:   rng.Float64()*180 - 90,
		Longitude:  rng.Float64()*360 - 180,
		Population: int64(rng.Intn(1_000_000)) + 1,
	}
}

// RandomRecords generates n valid records with IDs 1..n.
func RandomRecords(rng *RNG, n int) []*model.Record {
	records := make([]*model.Record, n)
	for i := range records {
		records[i] = RandomRecord(rng, int64(i+1))
	}
	return records
}

// ClusteredPoints generates k well-separated groups of perGroup points each.
// Group centers are spread across the globe; members scatter around their
// center with a small gaussian spread, so k-means with the right k separates
// them reliably.
func ClusteredPoints(rng *RNG, k, perGroup int) []model.Point {
	points := make([]model.Point, 0, k*perGroup)
	for g := 0; g < k; g++ {
		centerLat := -60 + float64(g)*120/float64(max(k-1, 1))
		centerLon := -150 + float64(g)*300/float64(max(k-1, 1))
		centerPop := float64(g+1) * 100_000

		for i := 0; i < perGroup; i++ {
			points = append(points, model.Point{
				Latitude:   centerLat + rng.NormFloat64(),
				Longitude:  centerLon + rng.NormFloat64(),
				Population: centerPop + rng.NormFloat64()*1_000,
			})
		}
	}
	return points
}
