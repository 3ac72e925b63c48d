package geoclust

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    collectCounter   prometheus.Counter
//	    clusterHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordCollect(records int, duration time.Duration, err error) {
//	    p.collectCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordCollect is called after each collection run.
	// records is the number of unique records returned, duration is the
	// total time taken, err is nil if successful.
	RecordCollect(records int, duration time.Duration, err error)

	// RecordCluster is called after each clustering run.
	// k is the requested cluster count, iterations is the number of
	// completed iterations.
	RecordCluster(k, iterations int, duration time.Duration, err error)

	// RecordSnapshot is called after each dataset save.
	RecordSnapshot(duration time.Duration, err error)

	// RecordLoad is called after each dataset load.
	RecordLoad(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordCollect(int, time.Duration, error)      {}
func (NoopMetricsCollector) RecordCluster(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordSnapshot(time.Duration, error)          {}
func (NoopMetricsCollector) RecordLoad(time.Duration, error)              {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	CollectCount      atomic.Int64
	CollectErrors     atomic.Int64
	CollectRecords    atomic.Int64
	CollectTotalNanos atomic.Int64
	ClusterCount      atomic.Int64
	ClusterErrors     atomic.Int64
	ClusterIterations atomic.Int64
	ClusterTotalNanos atomic.Int64
	SnapshotCount     atomic.Int64
	SnapshotErrors    atomic.Int64
	LoadCount         atomic.Int64
	LoadErrors        atomic.Int64
}

// RecordCollect implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCollect(records int, duration time.Duration, err error) {
	b.CollectCount.Add(1)
	b.CollectRecords.Add(int64(records))
	b.CollectTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.CollectErrors.Add(1)
	}
}

// RecordCluster implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCluster(k, iterations int, duration time.Duration, err error) {
	b.ClusterCount.Add(1)
	b.ClusterIterations.Add(int64(iterations))
	b.ClusterTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ClusterErrors.Add(1)
	}
}

// RecordSnapshot implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSnapshot(duration time.Duration, err error) {
	b.SnapshotCount.Add(1)
	if err != nil {
		b.SnapshotErrors.Add(1)
	}
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(duration time.Duration, err error) {
	b.LoadCount.Add(1)
	if err != nil {
		b.LoadErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		CollectCount:      b.CollectCount.Load(),
		CollectErrors:     b.CollectErrors.Load(),
		CollectRecords:    b.CollectRecords.Load(),
		CollectAvgNanos:   avg(b.CollectTotalNanos.Load(), b.CollectCount.Load()),
		ClusterCount:      b.ClusterCount.Load(),
		ClusterErrors:     b.ClusterErrors.Load(),
		ClusterIterations: b.ClusterIterations.Load(),
		ClusterAvgNanos:   avg(b.ClusterTotalNanos.Load(), b.ClusterCount.Load()),
		SnapshotCount:     b.SnapshotCount.Load(),
		SnapshotErrors:    b.SnapshotErrors.Load(),
		LoadCount:         b.LoadCount.Load(),
		LoadErrors:        b.LoadErrors.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	CollectCount      int64
	CollectErrors     int64
	CollectRecords    int64
	CollectAvgNanos   int64
	ClusterCount      int64
	ClusterErrors     int64
	ClusterIterations int64
	ClusterAvgNanos   int64
	SnapshotCount     int64
	SnapshotErrors    int64
	LoadCount         int64
	LoadErrors        int64
}
