package kmeans

import "github.com/fergl/geoclust/model"

// dims is the feature dimensionality: latitude, longitude, population.
const dims = 3

// bounds holds per-dimension min and max over the input set.
type bounds struct {
	min [dims]float64
	max [dims]float64
}

// span returns the range of dimension d, or 1 when all values coincide so
// normalization maps the dimension to a constant instead of dividing by zero.
func (b bounds) span(d int) float64 {
	s := b.max[d] - b.min[d]
	if s == 0 {
		return 1
	}
	return s
}

func computeBounds(points []model.Point) bounds {
	var b bounds
	for d := 0; d < dims; d++ {
		b.min[d] = points[0].Coords()[d]
		b.max[d] = b.min[d]
	}
	for _, p := range points {
		coords := p.Coords()
		for d := 0; d < dims; d++ {
			if coords[d] < b.min[d] {
				b.min[d] = coords[d]
			}
			if coords[d] > b.max[d] {
				b.max[d] = coords[d]
			}
		}
	}
	return b
}

// normalizePoints rescales every point into the unit cube via min-max
// normalization.
func normalizePoints(points []model.Point, b bounds) [][]float64 {
	norm := make([][]float64, len(points))
	for i, p := range points {
		coords := p.Coords()
		v := make([]float64, dims)
		for d := 0; d < dims; d++ {
			v[d] = (coords[d] - b.min[d]) / b.span(d)
		}
		norm[i] = v
	}
	return norm
}

// denormalizeCentroids maps unit-cube centroids back to original units.
func denormalizeCentroids(centroids [][]float64, b bounds) []model.Centroid {
	out := make([]model.Centroid, len(centroids))
	for i, c := range centroids {
		out[i] = model.Centroid{
			Latitude:   c[0]*b.span(0) + b.min[0],
			Longitude:  c[1]*b.span(1) + b.min[1],
			Population: c[2]*b.span(2) + b.min[2],
		}
	}
	return out
}
