// Package hyperdex provides a single HyperDex storage shard: a fixed-size,
// memory-mapped file holding a versioned key-value log.
//
// # Quick Start
//
//	db, err := hyperdex.Create("./data", "0001.shard",
//		hyperdex.WithGeometry(shard.Geometry{
//			HashTableEntries:   1 << 16,
//			SearchIndexEntries: 1 << 18,
//			DataSize:           64 << 20,
//		}),
//	)
//	if err != nil {
//		return err
//	}
//	defer db.Close()
//
//	err = db.Put(ctx, []byte("user:42"), [][]byte{[]byte("alice")}, 1)
//	item, err := db.Get(ctx, []byte("user:42"))
//
// DB hashes keys with murmur3 and serializes access to the shard. Callers that
// supply their own hashes, or manage locking themselves, use package shard
// directly.
//
// # Capacity
//
// A shard never grows. Writes fail with ErrDataFull, ErrHashFull or
// ErrSearchFull once a region is exhausted; IsCapacity reports all three.
// UsedSpace and StaleSpace tell when to clean (copy live records into a fresh
// shard) or split; package reshard implements both.
//
// # Durability
//
// Writes land in the page cache. Sync flushes the mapping and fsyncs the file;
// Async schedules the flush and returns.
//
// # Archives
//
// Package archive streams a snapshot into a compressed archive that can be
// stored through package blobstore (local disk, S3 or MinIO) and restored
// into a new shard.
package hyperdex
