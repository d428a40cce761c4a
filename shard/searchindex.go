package shard

import (
	"fmt"
	"sync/atomic"
)

// searchIndex is the append-only array of 16-byte entries in the second
// region of the mapping. Entry i occupies words 2i and 2i+1.
type searchIndex struct {
	words []uint64
}

func (x *searchIndex) capacity() uint32 { return uint32(len(x.words) / 2) }

func (x *searchIndex) hashes(pos uint32) (primary, secondary uint32) {
	return unpackHashes(atomic.LoadUint64(&x.words[2*pos]))
}

func (x *searchIndex) offsets(pos uint32) (data, invalidated uint32) {
	return unpackOffsets(atomic.LoadUint64(&x.words[2*pos+1]))
}

// set writes a fresh, live entry. The hash word is published before the
// offset word.
func (x *searchIndex) set(pos, primary, secondary, data uint32) {
	atomic.StoreUint64(&x.words[2*pos], packHashes(primary, secondary))
	atomic.StoreUint64(&x.words[2*pos+1], packOffsets(data, 0))
}

// invalidateSearchIndex marks the entry at pos as superseded by the record
// written at data offset with. An entry is invalidated exactly once; a
// second attempt means the hash table referenced a dead entry and panics.
func (s *Shard) invalidateSearchIndex(pos, with uint32) {
	addr := &s.index.words[2*pos+1]
	old := atomic.LoadUint64(addr)
	data, invalidated := unpackOffsets(old)
	if invalidated != 0 || !atomic.CompareAndSwapUint64(addr, old, packOffsets(data, with)) {
		panic(fmt.Sprintf("shard: search index entry %d invalidated twice", pos))
	}
}
