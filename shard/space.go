package shard

// Stats is a point-in-time accounting of a shard.
type Stats struct {
	Geometry Geometry

	// SearchUsed is the number of search index entries written, live or not.
	SearchUsed uint32
	// DataUsed is the number of data log bytes written, live or not.
	DataUsed uint32

	// LiveKeys is the number of keys reachable through the hash table.
	LiveKeys int
	// DeadSlots is the number of hash slots left behind by deletions.
	DeadSlots int
	// LiveBytes is the encoded size of the records LiveKeys point at.
	LiveBytes uint64
}

// StaleSearchEntries returns the number of written search index entries no
// key refers to.
func (st Stats) StaleSearchEntries() uint32 {
	return st.SearchUsed - uint32(st.LiveKeys)
}

// StaleBytes returns the number of written bytes, in both append regions,
// that a copy into a fresh shard would reclaim.
func (st Stats) StaleBytes() uint64 {
	return uint64(st.StaleSearchEntries())*searchEntrySize + uint64(st.DataUsed) - st.LiveBytes
}

// UsedBytes returns the number of written bytes in both append regions.
func (st Stats) UsedBytes() uint64 {
	return uint64(st.SearchUsed)*searchEntrySize + uint64(st.DataUsed)
}

// UsedSpace returns the percentage of the shard's append capacity consumed
// by every record and search entry ever written. It never decreases.
// It needs no lock.
func (s *Shard) UsedSpace() int {
	return percent(s.usage().UsedBytes(), s.geometry.appendCapacity())
}

// StaleSpace returns the percentage of the shard's append capacity that
// holds superseded records, tombstones and their search entries. The result
// is rounded down, so space is never reported as reclaimable when it is not.
// Requires a read lock.
func (s *Shard) StaleSpace() int {
	return percent(s.Stats().StaleBytes(), s.geometry.appendCapacity())
}

// Stats walks the hash table and accounts for every live record.
// Requires a read lock.
func (s *Shard) Stats() Stats {
	st := s.usage()
	for i := range s.table.capacity() {
		w := s.table.load(i)
		switch slotStateOf(w) {
		case slotDead:
			st.DeadSlots++
		case slotLive:
			off, _ := s.index.offsets(slotPosition(w))
			st.LiveKeys++
			st.LiveBytes += uint64(s.data.size(off))
		}
	}
	return st
}

// usage reads the cursors only.
func (s *Shard) usage() Stats {
	return Stats{
		Geometry:   s.geometry,
		SearchUsed: s.searchOffset.Load() - firstSearchPosition,
		DataUsed:   s.dataOffset.Load() - firstDataOffset,
	}
}

func percent(part uint64, whole int64) int {
	if whole <= 0 {
		return 0
	}
	return int(part * 100 / uint64(whole))
}
