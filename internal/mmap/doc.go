// Package mmap provides memory-mapped file access for shard files.
//
// # Overview
//
// A shard is a single fixed-size file mapped read-write and shared with the
// page cache. Every region of the shard (hash table, search index, data log)
// is addressed through the mapping; writes land in the page cache and are
// flushed back with Sync (msync MS_SYNC) or Async (msync MS_ASYNC).
//
// # Usage
//
//	f, _ := os.OpenFile("shard.0", os.O_RDWR|os.O_CREATE, 0o644)
//	_ = f.Truncate(size)
//	m, err := mmap.Map(f, size, mmap.ReadWrite)
//	if err != nil { ... }
//	defer m.Close()
//
//	// Views into the mapping
//	table, _ := m.Region(0, tableSize)
//	table.Advise(mmap.AccessRandom)
//
//	// Durability
//	_ = m.Sync()
//
// Read-only mappings of whole files are available through Open.
//
// # Platform Support
//
//   - Unix (Linux, macOS, BSD): mmap(2), msync(2), madvise(2)
//   - Windows: CreateFileMapping/MapViewOfFile, FlushViewOfFile (madvise is a no-op)
//
// # Thread Safety
//
// Close is idempotent and protected by atomic operations. Callers must ensure
// no goroutine touches Bytes() after Close returns. Sync and Async may be
// called concurrently with readers and writers of the mapped memory.
package mmap
