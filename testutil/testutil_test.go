package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRNG_Deterministic(t *testing.T) {
	a := NewRNG(42)
	b := NewRNG(42)
	for i := 0; i < 10; i++ {
		require.Equal(t, a.Float64(), b.Float64())
	}

	a.Reset()
	c := NewRNG(42)
	require.Equal(t, c.Float64(), a.Float64())
	require.Equal(t, int64(42), a.Seed())
}

func TestRandomRecords_Valid(t *testing.T) {
	rng := NewRNG(1)
	records := RandomRecords(rng, 50)
	require.Len(t, records, 50)
	for i, r := range records {
		require.Equal(t, int64(i+1), r.ID)
		require.True(t, r.Valid())
		require.GreaterOrEqual(t, r.Latitude, -90.0)
		require.LessOrEqual(t, r.Latitude, 90.0)
	}
}

func TestClusteredPoints_Shape(t *testing.T) {
	rng := NewRNG(7)
	points := ClusteredPoints(rng, 3, 20)
	require.Len(t, points, 60)
}
