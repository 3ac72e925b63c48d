// Package minio implements blobstore.Store on MinIO and S3-compatible
// object storage.
//
// Uploads stream through a pipe into a background PutObject; the writer's
// Close reports the upload result. Missing objects map to
// blobstore.ErrNotFound.
package minio
