// Package geoclust collects geographic records from a paginated HTTP source
// and clusters them with parallel k-means.
//
// Geoclust is an embeddable engine with production-ready features:
//
//   - Parallel page collection with rate limiting and retry classification
//   - Lock-free shared append buffer (optionally memory-mapped)
//   - Two-pass deduplication (identity, then fuzzy name/coordinate matching)
//   - Partitioned k-means over normalized latitude/longitude/population
//   - Dataset snapshots with lz4/zstd compression
//   - Pluggable blob storage (local filesystem, memory, MinIO/S3)
//
// # Quick Start
//
//	ctx := context.Background()
//	gc, _ := geoclust.New("https://api.example.com/v1/cities",
//	    geoclust.WithAPIKey(os.Getenv("API_KEY")),
//	    geoclust.WithWorkers(3),
//	)
//
//	records, _ := gc.Collect(ctx, 1000, 100, func(p collector.Progress) {
//	    fmt.Printf("\r%.1f%%", p.Percent)
//	})
//
//	result, _ := gc.ClusterRecords(ctx, records, 8)
//	for i, c := range result.Centroids {
//	    fmt.Println(i, c.Latitude, c.Longitude, len(result.Clusters[i]))
//	}
//
// # Snapshots
//
// Collected datasets can be archived to any blobstore.Store:
//
//	gc, _ := geoclust.New(baseURL,
//	    geoclust.WithStore(blobstore.NewLocal("./data")),
//	    geoclust.WithCompression(archive.CompressionZstd),
//	)
//	_ = gc.SaveDataset(ctx, "cities-2026-08.gcar", records)
//	records, _ = gc.LoadDataset(ctx, "cities-2026-08.gcar")
package geoclust
