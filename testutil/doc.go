// Package testutil provides testing utilities for Geoclust.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded thread-safe random number generator and
// generators for synthetic geographic records and clustered point sets.
//
// # Random Generation
//
//	rng := testutil.NewRNG(seed)
//	records := testutil.RandomRecords(rng, 100)
//
// # Clustered Data
//
//	points := testutil.ClusteredPoints(rng, 3, 50)
package testutil
