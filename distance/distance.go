// Package distance provides the distance calculations used by clustering.
//
// All clustering happens in min-max normalized space where every dimension
// lies in [0,1], so plain equal-weight Euclidean distance is the metric.
package distance

import "math"

// Squared returns the squared Euclidean distance between a and b.
// Assumes the slices are the same length (caller's responsibility).
func Squared(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// Euclidean returns the Euclidean distance between a and b.
// Assumes the slices are the same length (caller's responsibility).
func Euclidean(a, b []float64) float64 {
	return math.Sqrt(Squared(a, b))
}
