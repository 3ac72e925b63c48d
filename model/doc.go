// Package model defines the shared data types of geoclust.
//
// # Types
//
//   - Record: a geographic record fetched from the upstream source
//   - Point: the clustering view of a Record (three dimensions)
//   - Centroid: the representative point of a cluster
//   - ClusteringResult: clusters, centroids and termination state
//
// Records are immutable once fetched: deduplication selects between
// candidates but never mutates fields in place.
package model
