package geoclust

import (
	"context"
	"time"

	"github.com/fergl/geoclust/archive"
	"github.com/fergl/geoclust/blobstore"
	"github.com/fergl/geoclust/codec"
	"github.com/fergl/geoclust/collector"
	"github.com/fergl/geoclust/fetch"
	"github.com/fergl/geoclust/kmeans"
	"github.com/fergl/geoclust/model"
)

// DefaultStoreRoot is the local snapshot directory used when no blob store
// is configured.
const DefaultStoreRoot = "data"

// Geoclust collects geographic records from a paginated source and clusters
// them. All methods are safe for concurrent use.
type Geoclust struct {
	client      *fetch.Client
	coordinator *collector.Coordinator
	store       blobstore.Store
	codec       codec.Codec
	compression archive.Compression
	metrics     MetricsCollector
	logger      *Logger
	opts        options
}

// New creates a Geoclust engine for the given upstream base URL.
func New(baseURL string, optFns ...Option) (*Geoclust, error) {
	opts := applyOptions(optFns)

	fetchOpts := []fetch.Option{
		fetch.WithLogger(opts.logger.Logger),
	}
	if opts.httpClient != nil {
		fetchOpts = append(fetchOpts, fetch.WithHTTPClient(opts.httpClient))
	}
	if opts.apiKey != "" {
		fetchOpts = append(fetchOpts, fetch.WithAPIKey(opts.apiKey))
	}
	if opts.requestInterval > 0 {
		fetchOpts = append(fetchOpts, fetch.WithRequestInterval(opts.requestInterval))
	}
	if opts.maxRetries > 0 {
		fetchOpts = append(fetchOpts, fetch.WithMaxRetries(opts.maxRetries))
	}

	client, err := fetch.New(baseURL, fetchOpts...)
	if err != nil {
		return nil, translateError(err)
	}

	collOpts := []collector.Option{
		collector.WithCodec(opts.codec),
		collector.WithLogger(opts.logger.Logger),
		collector.WithSharedBuffer(opts.sharedBuffer),
		collector.WithMappedBuffer(opts.mappedBuffer),
	}
	if opts.workers > 0 {
		collOpts = append(collOpts, collector.WithWorkers(opts.workers))
	}
	if opts.timeout > 0 {
		collOpts = append(collOpts, collector.WithTimeout(opts.timeout))
	}
	if opts.avgRecordSize > 0 {
		collOpts = append(collOpts, collector.WithAvgRecordSize(opts.avgRecordSize))
	}

	coordinator, err := collector.New(client, collOpts...)
	if err != nil {
		return nil, translateError(err)
	}

	store := opts.store
	if store == nil {
		store = blobstore.NewLocal(DefaultStoreRoot)
	}

	return &Geoclust{
		client:      client,
		coordinator: coordinator,
		store:       store,
		codec:       opts.codec,
		compression: opts.compression,
		metrics:     opts.metricsCollector,
		logger:      opts.logger,
		opts:        opts,
	}, nil
}

// Collect fetches up to target records in pages of pageSize and returns the
// deduplicated set. Progress callbacks are optional; pass nil to skip them.
func (gc *Geoclust) Collect(ctx context.Context, target, pageSize int, onProgress collector.ProgressFunc) ([]*model.Record, error) {
	start := time.Now()
	records, err := gc.coordinator.Collect(ctx, target, pageSize, onProgress)
	err = translateError(err)
	gc.metrics.RecordCollect(len(records), time.Since(start), err)
	gc.logger.LogCollect(ctx, target, len(records), err)
	return records, err
}

// Cluster groups the points into k clusters. Per-call kmeans options
// override the engine's configured clustering options.
func (gc *Geoclust) Cluster(ctx context.Context, points []model.Point, k int, optFns ...kmeans.Option) (*model.ClusteringResult, error) {
	start := time.Now()

	result, err := gc.runKMeans(ctx, points, k, optFns)
	err = translateError(err)

	iterations := 0
	converged := false
	if result != nil {
		iterations = result.Iterations
		converged = result.Converged
	}
	gc.metrics.RecordCluster(k, iterations, time.Since(start), err)
	gc.logger.LogCluster(ctx, k, iterations, converged, err)
	return result, err
}

// ClusterRecords is a convenience wrapper: it derives the clustering view of
// the records and clusters it.
func (gc *Geoclust) ClusterRecords(ctx context.Context, records []*model.Record, k int, optFns ...kmeans.Option) (*model.ClusteringResult, error) {
	return gc.Cluster(ctx, PointsFromRecords(records), k, optFns...)
}

func (gc *Geoclust) runKMeans(ctx context.Context, points []model.Point, k int, extra []kmeans.Option) (*model.ClusteringResult, error) {
	kmOpts := []kmeans.Option{
		kmeans.WithLogger(gc.logger.Logger),
	}
	if gc.opts.seedSet {
		kmOpts = append(kmOpts, kmeans.WithSeed(gc.opts.seed))
	}
	if gc.opts.maxIterations > 0 {
		kmOpts = append(kmOpts, kmeans.WithMaxIterations(gc.opts.maxIterations))
	}
	if gc.opts.threshold > 0 {
		kmOpts = append(kmOpts, kmeans.WithThreshold(gc.opts.threshold))
	}
	if gc.opts.clusterWorkers > 0 {
		kmOpts = append(kmOpts, kmeans.WithWorkers(gc.opts.clusterWorkers))
	}
	if gc.opts.onIteration != nil {
		kmOpts = append(kmOpts, kmeans.WithOnIteration(gc.opts.onIteration))
	}
	kmOpts = append(kmOpts, extra...)

	engine, err := kmeans.New(k, kmOpts...)
	if err != nil {
		return nil, err
	}
	return engine.Run(ctx, points)
}

// PointsFromRecords derives the clustering view of the records.
func PointsFromRecords(records []*model.Record) []model.Point {
	points := make([]model.Point, len(records))
	for i, r := range records {
		points[i] = model.PointFromRecord(r)
	}
	return points
}

// SaveDataset archives the records to the configured blob store.
func (gc *Geoclust) SaveDataset(ctx context.Context, name string, records []*model.Record) error {
	start := time.Now()
	err := archive.Save(ctx, gc.store, name, records,
		archive.WithCodec(gc.codec),
		archive.WithCompression(gc.compression),
	)
	err = translateError(err)
	gc.metrics.RecordSnapshot(time.Since(start), err)
	gc.logger.LogSnapshot(ctx, name, len(records), err)
	return err
}

// LoadDataset reads an archived dataset from the configured blob store.
func (gc *Geoclust) LoadDataset(ctx context.Context, name string) ([]*model.Record, error) {
	start := time.Now()
	records, err := archive.Load(ctx, gc.store, name, archive.WithCodec(gc.codec))
	err = translateError(err)
	gc.metrics.RecordLoad(time.Since(start), err)
	gc.logger.LogLoad(ctx, name, len(records), err)
	return records, err
}

// ListDatasets returns the names of archived datasets with the given prefix.
func (gc *Geoclust) ListDatasets(ctx context.Context, prefix string) ([]string, error) {
	return gc.store.List(ctx, prefix)
}

// DeleteDataset removes an archived dataset. Deleting a missing dataset is
// not an error.
func (gc *Geoclust) DeleteDataset(ctx context.Context, name string) error {
	return translateError(gc.store.Delete(ctx, name))
}
