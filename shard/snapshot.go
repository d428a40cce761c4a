package shard

import (
	"iter"
	"sync/atomic"
)

// Record is one key-value pair observed through a snapshot.
type Record struct {
	Primary   uint32
	Secondary uint32
	Key       []byte
	Value     [][]byte
	Version   uint64
	// Offset is the data log offset the record was read from.
	Offset uint32
}

// Snapshot is a read-only view of a shard frozen at the write cursors
// observed when it was taken. Appends made afterwards are not visible, and
// records superseded afterwards are still reported with their old contents.
//
// A Snapshot holds a reference on its shard, so the mapping outlives a Close
// of the shard until the snapshot is closed too. Iteration needs no lock.
type Snapshot struct {
	shard        *Shard
	searchOffset uint32
	dataOffset   uint32
	closed       atomic.Bool
}

// Snapshot pins the current write cursors.
// Requires a read lock that excludes Put and Del for the duration of the
// call; the returned snapshot may be used after the lock is released.
func (s *Shard) Snapshot() (*Snapshot, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	s.IncRef()
	return &Snapshot{
		shard:        s,
		searchOffset: s.searchOffset.Load(),
		dataOffset:   s.dataOffset.Load(),
	}, nil
}

// Geometry returns the geometry of the underlying shard.
func (sn *Snapshot) Geometry() Geometry { return sn.shard.geometry }

// visible reports whether the search index entry at pos was live when the
// snapshot was taken. An entry invalidated later points at a superseding
// record at or past the pinned data cursor.
func (sn *Snapshot) visible(pos uint32) (uint32, bool) {
	data, invalidated := sn.shard.index.offsets(pos)
	return data, invalidated == 0 || invalidated >= sn.dataOffset
}

func (sn *Snapshot) record(pos, off uint32) Record {
	d := &sn.shard.data
	primary, secondary := sn.shard.index.hashes(pos)
	return Record{
		Primary:   primary,
		Secondary: secondary,
		Key:       append([]byte(nil), d.key(off)...),
		Value:     d.value(off),
		Version:   d.version(off),
		Offset:    off,
	}
}

// Iterator returns a cursor over the records visible in the snapshot, in the
// order they were written.
func (sn *Snapshot) Iterator() *Iterator {
	return &Iterator{snap: sn, pos: firstSearchPosition}
}

// All returns the visible records in the order they were written.
func (sn *Snapshot) All() iter.Seq[Record] {
	return func(yield func(Record) bool) {
		it := sn.Iterator()
		for it.Next() {
			if !yield(it.Record()) {
				return
			}
		}
	}
}

// Close releases the snapshot's reference on the shard. Subsequent calls
// are no-ops.
func (sn *Snapshot) Close() error {
	if !sn.closed.CompareAndSwap(false, true) {
		return nil
	}
	return sn.shard.DecRef()
}

// Iterator walks a snapshot.
//
//	it := snap.Iterator()
//	for it.Next() {
//		rec := it.Record()
//	}
//	if err := it.Err(); err != nil { ... }
type Iterator struct {
	snap *Snapshot
	pos  uint32
	cur  Record
	err  error
}

// Next advances to the next visible record and reports whether there is one.
func (it *Iterator) Next() bool {
	if it.err != nil {
		return false
	}
	if it.snap.closed.Load() {
		it.err = ErrClosed
		return false
	}

	for it.pos < it.snap.searchOffset {
		pos := it.pos
		it.pos++
		if off, ok := it.snap.visible(pos); ok {
			it.cur = it.snap.record(pos, off)
			return true
		}
	}
	return false
}

// Record returns the record Next stopped at.
func (it *Iterator) Record() Record { return it.cur }

// Err returns the error that ended iteration early, if any.
func (it *Iterator) Err() error { return it.err }
