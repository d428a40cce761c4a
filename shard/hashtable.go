package shard

import (
	"bytes"
	"fmt"
	"sync/atomic"
)

// hashTable is the open-addressed index from primary hash to search index
// position. It lives in the first region of the mapping.
type hashTable struct {
	slots []uint64
}

func (t *hashTable) capacity() int { return len(t.slots) }

func (t *hashTable) load(i int) uint64 { return atomic.LoadUint64(&t.slots[i]) }

func (t *hashTable) store(i int, w uint64) { atomic.StoreUint64(&t.slots[i], w) }

func (t *hashTable) reset() { clear(t.slots) }

// start is the first slot of the probe sequence for primary.
func (t *hashTable) start(primary uint32) int {
	return int(uint64(primary) % uint64(len(t.slots)))
}

// findBucket resolves the slot for key.
//
// If a live slot references key, it returns found=true, that slot and the
// search index position it points at. Otherwise it returns found=false and
// the slot an insert should use: the first dead slot on the probe sequence,
// or else the empty slot that ended it. Dead slots do not end the probe, so
// a key stored behind a deleted one is still found; stopping at the first
// dead slot would let a later Put insert a second live slot for that key. When neither exists the
// returned slot equals the table capacity (table full).
func (s *Shard) findBucket(primary uint32, key []byte) (found bool, entry int, position uint32) {
	capacity := s.table.capacity()
	free := capacity
	i := s.table.start(primary)

	for probed := 0; probed < capacity; probed++ {
		w := s.table.load(i)

		switch slotStateOf(w) {
		case slotEmpty:
			if free == capacity {
				free = i
			}
			return false, free, 0
		case slotDead:
			if free == capacity {
				free = i
			}
		case slotLive:
			if slotHash(w) == primary {
				pos := slotPosition(w)
				data, invalidated := s.index.offsets(pos)
				if invalidated == 0 && bytes.Equal(s.data.key(data), key) {
					return true, i, pos
				}
			}
		}

		if i++; i == capacity {
			i = 0
		}
	}

	return false, free, 0
}

// findFreeBucket returns the first empty slot on the probe sequence for
// primary. It is the insertion path of CopyTo, whose destination has just
// been reset: it has no dead slots and receives each live key once, so no
// key comparison is needed. Meeting a dead slot or a full table violates
// that contract and panics rather than corrupting the destination.
func (s *Shard) findFreeBucket(primary uint32) int {
	capacity := s.table.capacity()
	i := s.table.start(primary)

	for probed := 0; probed < capacity; probed++ {
		w := s.table.load(i)
		switch slotStateOf(w) {
		case slotEmpty:
			return i
		case slotDead:
			panic(fmt.Sprintf("shard: dead hash slot %d in copy destination", i))
		}
		if i++; i == capacity {
			i = 0
		}
	}

	panic("shard: copy destination hash table is full")
}
