package shard

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/agiz/HyperDex/internal/conv"
	"github.com/agiz/HyperDex/internal/fs"
	"github.com/agiz/HyperDex/internal/mmap"
)

// Shard is a fixed-capacity, memory-mapped, append-only key-value log.
//
// A Shard performs no locking of its own. Callers must serialize access:
//   - Get requires a read lock.
//   - Put and Del require the write lock.
//   - Snapshot and CopyTo (as the source) require a read lock that excludes
//     Put and Del for the duration of the call.
//   - Sync, Async, UsedSpace and the reference counting methods need no lock.
//
// A Get racing with a Put or Del may report a spurious ErrNotFound; callers
// that do not hold the locks described above must retry. Guarded wraps a
// Shard with a sync.RWMutex that implements this contract.
//
// Shards are reference counted. Create returns a shard holding one
// reference; Snapshot takes another. The mapping and file are released when
// the last reference is dropped.
type Shard struct {
	refs   atomic.Int64
	closed atomic.Bool

	path     string
	geometry Geometry
	file     fs.File
	mapping  *mmap.Mapping

	table hashTable
	index searchIndex
	data  dataLog

	// Write cursors: next free data log offset and search index position.
	// Only mutated under the write lock; atomic so that space accounting
	// and snapshots can read them without one.
	dataOffset   atomic.Uint32
	searchOffset atomic.Uint32

	fs         fs.FileSystem
	baseLogger *slog.Logger
	logger     *slog.Logger
	metrics    MetricsObserver
}

// Create creates a newly initialized shard file named name inside dir. An
// existing file is overwritten.
func Create(dir, name string, optFns ...Option) (*Shard, error) {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}

	g := o.geometry
	if err := g.Validate(); err != nil {
		return nil, err
	}

	path := filepath.Join(dir, name)
	f, err := o.fs.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, o.fileMode)
	if err != nil {
		return nil, fmt.Errorf("shard: create %s: %w", path, err)
	}

	// The file was truncated to zero above, so extending it yields an
	// all-zero (empty) hash table.
	if err := f.Truncate(g.FileSize()); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("shard: allocate %s: %w", path, err)
	}

	size, err := conv.Int64ToInt(g.FileSize())
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("shard: map %s: %w", path, err)
	}
	m, err := mmap.Map(f, size, mmap.ReadWrite)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("shard: map %s: %w", path, err)
	}

	s, err := newShard(path, g, f, m)
	if err != nil {
		_ = m.Close()
		_ = f.Close()
		return nil, err
	}
	s.fs = o.fs
	s.baseLogger = o.logger
	s.logger = o.logger.With("shard", path)
	s.metrics = o.metrics

	if err := fs.SyncDir(o.fs, dir); err != nil {
		// The shard is usable; only the directory entry may not be durable yet.
		s.logger.Warn("sync shard directory failed", "dir", dir, "error", err)
	}

	s.logger.Debug("shard created",
		"hash_table_entries", g.HashTableEntries,
		"search_index_entries", g.SearchIndexEntries,
		"data_size", g.DataSize,
	)
	return s, nil
}

func newShard(path string, g Geometry, f fs.File, m *mmap.Mapping) (*Shard, error) {
	table, err := m.Region(0, int(g.hashTableSize()))
	if err != nil {
		return nil, err
	}
	index, err := m.Region(table.Offset()+table.Size(), int(g.searchIndexSize()))
	if err != nil {
		return nil, err
	}
	data, err := m.Region(index.Offset()+index.Size(), int(g.DataSize))
	if err != nil {
		return nil, err
	}

	// Lookups hop between unrelated slots and entries.
	_ = table.Advise(mmap.AccessRandom)
	_ = index.Advise(mmap.AccessRandom)

	s := &Shard{
		path:     path,
		geometry: g,
		file:     f,
		mapping:  m,
		table:    hashTable{slots: words(table.Bytes())},
		index:    searchIndex{words: words(index.Bytes())},
		data:     dataLog{buf: data.Bytes()},
	}
	s.refs.Store(1)
	s.dataOffset.Store(firstDataOffset)
	s.searchOffset.Store(firstSearchPosition)
	return s, nil
}

// Path returns the path of the backing file.
func (s *Shard) Path() string { return s.path }

// Geometry returns the capacities the shard was created with.
func (s *Shard) Geometry() Geometry { return s.geometry }

// Rename moves the backing file to name in the same directory, replacing any
// file there. The mapping is unaffected. Requires exclusive access.
func (s *Shard) Rename(name string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	dir := filepath.Dir(s.path)
	path := filepath.Join(dir, name)
	if err := s.fs.Rename(s.path, path); err != nil {
		return fmt.Errorf("shard: rename %s: %w", s.path, err)
	}
	if err := fs.SyncDir(s.fs, dir); err != nil {
		s.logger.Warn("sync shard directory failed", "dir", dir, "error", err)
	}

	s.logger.Debug("shard renamed", "to", path)
	s.path = path
	s.logger = s.baseLogger.With("shard", path)
	return nil
}

// IncRef adds a reference.
func (s *Shard) IncRef() {
	s.refs.Add(1)
}

// DecRef drops a reference. Dropping the last one unmaps and closes the
// file; the error of that release is returned.
func (s *Shard) DecRef() error {
	refs := s.refs.Add(-1)
	switch {
	case refs > 0:
		return nil
	case refs < 0:
		panic("shard: reference count underflow")
	}

	s.closed.Store(true)
	err := errors.Join(s.mapping.Close(), s.file.Close())
	if err != nil {
		s.logger.Error("shard release failed", "error", err)
	} else {
		s.logger.Debug("shard released")
	}
	return err
}

// Close drops the reference returned by Create.
func (s *Shard) Close() error {
	return s.DecRef()
}

// Get returns the value and version stored for key.
// Requires a read lock.
func (s *Shard) Get(primary uint32, key []byte) ([][]byte, uint64, error) {
	if s.closed.Load() {
		return nil, 0, ErrClosed
	}

	found, _, pos := s.findBucket(primary, key)
	if !found {
		s.metrics.OnOperation(OpGet, NotFound)
		return nil, 0, ErrNotFound
	}

	off, _ := s.index.offsets(pos)
	value, version := s.data.value(off), s.data.version(off)
	s.metrics.OnOperation(OpGet, Success)
	return value, version, nil
}

// Put stores value under key, superseding any previous version. Versions are
// assigned by the caller and must increase per key; they are not checked.
// Requires the write lock.
//
// All capacity checks happen before anything is written, so a failed Put
// leaves the shard unchanged.
func (s *Shard) Put(primary, secondary uint32, key []byte, value [][]byte, version uint64) error {
	if s.closed.Load() {
		return ErrClosed
	}

	err := s.put(primary, secondary, key, value, version)
	s.metrics.OnOperation(OpPut, CodeOf(err))
	return err
}

func (s *Shard) put(primary, secondary uint32, key []byte, value [][]byte, version uint64) error {
	dataOff := s.dataOffset.Load()
	size := recordSize(key, value)
	if uint64(dataOff)+size > uint64(s.data.capacity()) {
		return ErrDataFull
	}

	found, entry, oldPos := s.findBucket(primary, key)
	if !found && entry == s.table.capacity() {
		return ErrHashFull
	}

	pos := s.searchOffset.Load()
	if pos >= s.index.capacity() {
		return ErrSearchFull
	}

	n := s.data.put(dataOff, version, key, value)
	s.index.set(pos, primary, secondary, dataOff)
	if found {
		s.invalidateSearchIndex(oldPos, dataOff)
	}
	s.table.store(entry, packHashSlot(pos, primary))

	s.dataOffset.Store(dataOff + n)
	s.searchOffset.Store(pos + 1)
	return nil
}

// Del removes key by appending a tombstone record. The tombstone consumes
// data log space, so Del can fail with ErrDataFull.
// Requires the write lock.
func (s *Shard) Del(primary uint32, key []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}

	err := s.del(primary, key)
	s.metrics.OnOperation(OpDel, CodeOf(err))
	return err
}

func (s *Shard) del(primary uint32, key []byte) error {
	found, entry, pos := s.findBucket(primary, key)
	if !found {
		return ErrNotFound
	}

	dataOff := s.dataOffset.Load()
	if uint64(dataOff)+tombstoneSize(key) > uint64(s.data.capacity()) {
		return ErrDataFull
	}

	old, _ := s.index.offsets(pos)
	n := s.data.putTombstone(dataOff, s.data.version(old), key)
	s.invalidateSearchIndex(pos, dataOff)
	s.table.store(entry, deadSlot(primary))

	s.dataOffset.Store(dataOff + n)
	return nil
}

// Async schedules the mapped regions for write-back and returns without
// waiting. It needs no lock.
func (s *Shard) Async() error {
	start := time.Now()
	err := s.flush(false)
	s.metrics.OnSync(false, time.Since(start), err)
	return err
}

// Sync writes the mapped regions back and fsyncs the file. It needs no lock.
func (s *Shard) Sync() error {
	start := time.Now()
	err := s.flush(true)
	s.metrics.OnSync(true, time.Since(start), err)
	return err
}

func (s *Shard) flush(wait bool) error {
	if s.closed.Load() {
		return ErrClosed
	}

	if wait {
		if err := s.mapping.Sync(); err != nil {
			return s.syncFailed("msync", err)
		}
		if err := s.file.Sync(); err != nil {
			return s.syncFailed("fsync", err)
		}
		return nil
	}

	if err := s.mapping.Async(); err != nil {
		return s.syncFailed("msync", err)
	}
	return nil
}

func (s *Shard) syncFailed(op string, err error) error {
	s.logger.Error("shard sync failed", "op", op, "error", err)
	return &SyncError{Op: op, Path: s.path, Err: err}
}
