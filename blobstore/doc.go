// Package blobstore stores shard archives outside the machine that owns the
// shard.
//
// BlobStore is the interface for reading and writing immutable blobs.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local file system, reads through a read-only mmap
//   - MemoryStore: in-process map, for tests
//   - s3.Store: Amazon S3 with multipart streaming uploads
//   - minio.Store: MinIO and other S3-compatible services
//
// Writes are atomic from a reader's point of view: a blob created with
// Create is published on Close and discarded on Abort.
package blobstore
