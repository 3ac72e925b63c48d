// Package blobstore provides storage abstraction for dataset archives.
//
// Store is the interface for reading and writing blobs. Implementations
// must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - Local: local filesystem with atomic rename-on-close writes
//   - Memory: in-memory store for tests
//   - minio.Store: MinIO and S3-compatible object storage
//
// # Custom Implementations
//
// Implement the Store interface to support custom storage backends:
//
//	type Store interface {
//	    Create(ctx, name) (io.WriteCloser, error)  // Create for writing
//	    Open(ctx, name) (io.ReadCloser, error)     // Open for reading
//	    List(ctx, prefix) ([]string, error)
//	    Delete(ctx, name) error
//	}
package blobstore
