package shard

import (
	"fmt"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
)

// LiveSet returns the search index positions of every key reachable through
// the hash table. Entries absent from the set are stale.
// Requires a read lock.
func (s *Shard) LiveSet() *roaring.Bitmap {
	live := roaring.New()
	for i := range s.table.capacity() {
		w := s.table.load(i)
		if slotStateOf(w) == slotLive {
			live.Add(slotPosition(w))
		}
	}
	return live
}

// CopyTo overwrites dst with every live record of s whose hashes coord
// contains, and returns the number of records copied. Records keep their
// relative write order and versions; stale entries and tombstones are
// dropped, so dst starts with no stale space.
//
// Requires a read lock on s that excludes Put and Del, and exclusive access
// to dst. dst is reset even when the copy fails; if dst runs out of capacity
// it is left holding the records copied so far and a capacity error is
// returned.
func (s *Shard) CopyTo(coord Coordinate, dst *Shard) (copied int, err error) {
	if dst == nil || dst == s {
		return 0, fmt.Errorf("%w: copy destination must be another shard", ErrInvalidArgument)
	}
	if s.closed.Load() || dst.closed.Load() {
		return 0, ErrClosed
	}
	if coord == nil {
		coord = MatchAll
	}

	start := time.Now()
	defer func() {
		d := time.Since(start)
		s.metrics.OnCopy(d, copied, err)
		if err != nil {
			s.logger.Error("shard copy failed", "dst", dst.path, "copied", copied, "error", err)
			return
		}
		s.logger.Info("shard copied", "dst", dst.path, "copied", copied, "duration", d)
	}()

	live := s.LiveSet()
	dst.reset()

	it := live.Iterator()
	for it.HasNext() {
		pos := it.Next()
		primary, secondary := s.index.hashes(pos)
		if !coord.Contains(primary, secondary) {
			continue
		}

		off, _ := s.index.offsets(pos)
		if err := dst.appendRaw(primary, secondary, s.data.raw(off), copied); err != nil {
			return copied, err
		}
		copied++
	}
	return copied, nil
}

// reset discards every record. The append regions are not cleared; the
// cursors make their old contents unreachable.
func (s *Shard) reset() {
	s.table.reset()
	s.dataOffset.Store(firstDataOffset)
	s.searchOffset.Store(firstSearchPosition)
}

// appendRaw appends an encoded live record on the copy path. keys is the
// number of keys already in the table, which has no dead slots.
func (s *Shard) appendRaw(primary, secondary uint32, rec []byte, keys int) error {
	dataOff := s.dataOffset.Load()
	if uint64(dataOff)+uint64(len(rec)) > uint64(s.data.capacity()) {
		return ErrDataFull
	}
	if keys >= s.table.capacity() {
		return ErrHashFull
	}
	pos := s.searchOffset.Load()
	if pos >= s.index.capacity() {
		return ErrSearchFull
	}

	n := s.data.putRaw(dataOff, rec)
	s.index.set(pos, primary, secondary, dataOff)
	s.table.store(s.findFreeBucket(primary), packHashSlot(pos, primary))

	s.dataOffset.Store(dataOff + n)
	s.searchOffset.Store(pos + 1)
	return nil
}
