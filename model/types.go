package model

import "math"

// Record is a single geographic record as returned by the upstream source.
type Record struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Country    string  `json:"country"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Population int64   `json:"population"`
}

// Valid reports whether the record carries usable coordinates and a strictly
// positive population. Invalid records are dropped during collection.
func (r *Record) Valid() bool {
	if r == nil {
		return false
	}
	if math.IsNaN(r.Latitude) || math.IsNaN(r.Longitude) {
		return false
	}
	if math.IsInf(r.Latitude, 0) || math.IsInf(r.Longitude, 0) {
		return false
	}
	return r.Population > 0
}

// Point is the clustering view of a Record. The Record back-reference exists
// purely for display after clustering; it does not imply ownership.
type Point struct {
	Latitude   float64
	Longitude  float64
	Population float64
	Record     *Record
}

// Coords returns the point coordinates in dimension order
// (latitude, longitude, population).
func (p Point) Coords() []float64 {
	return []float64{p.Latitude, p.Longitude, p.Population}
}

// PointFromRecord derives the clustering view of a record.
func PointFromRecord(r *Record) Point {
	return Point{
		Latitude:   r.Latitude,
		Longitude:  r.Longitude,
		Population: float64(r.Population),
		Record:     r,
	}
}

// Centroid is the representative point of a cluster. Centroids are mutable
// across iterations and denormalized back to original units before being
// returned to the caller.
type Centroid struct {
	Latitude   float64
	Longitude  float64
	Population float64
}

// Coords returns the centroid coordinates in dimension order.
func (c Centroid) Coords() []float64 {
	return []float64{c.Latitude, c.Longitude, c.Population}
}

// ClusteringResult is the outcome of a k-means run.
//
// Clusters maps each centroid index to the indexes of its member points in
// the input slice. Iterations counts completed iterations; Converged reports
// whether every centroid moved less than the convergence threshold in the
// final iteration.
type ClusteringResult struct {
	Clusters   [][]int
	Centroids  []Centroid
	Iterations int
	Converged  bool
}
