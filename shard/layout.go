package shard

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/agiz/HyperDex/internal/conv"
)

// File layout:
//
//	[ hash table   : HashTableEntries   * 8 bytes  ]
//	[ search index : SearchIndexEntries * 16 bytes ]
//	[ data log     : DataSize bytes                ]
//
// The hash table and search index are arrays of machine words accessed with
// atomic loads and stores; the mapping is page aligned and both regions start
// on a multiple of 8, so every word is naturally aligned.
//
// Hash table word:
//
//	[63..32] search index position   [31..0] primary hash
//
// Search index entry:
//
//	word 0: [63..32] secondary hash      [31..0] primary hash
//	word 1: [63..32] invalidation offset [31..0] data offset
//
// The invalidation offset is the data log offset of the record or tombstone
// that superseded the entry, 0 while the entry is live.
const (
	hashEntrySize   = 8
	searchEntrySize = 16

	// deadPosition marks a hash slot whose key was deleted. The slot is
	// reusable but does not terminate a probe sequence.
	deadPosition = math.MaxUint32

	// firstSearchPosition reserves position 0 so that a live hash word is
	// never zero (zero means empty).
	firstSearchPosition = 1

	// firstDataOffset reserves the start of the data log so that a valid
	// invalidation offset is never zero (zero means live).
	firstDataOffset = 8
)

// Geometry fixes the capacity of each region of a shard file.
type Geometry struct {
	// HashTableEntries is the number of open-addressed hash slots.
	HashTableEntries uint32 `yaml:"hash_table_entries" validate:"required,min=1"`
	// SearchIndexEntries is the number of search index entries, including
	// the reserved entry at position 0.
	SearchIndexEntries uint32 `yaml:"search_index_entries" validate:"required,min=2"`
	// DataSize is the size of the data log in bytes.
	DataSize uint32 `yaml:"data_size" validate:"required,min=16"`
}

// DefaultGeometry returns the geometry used when none is configured:
// 256Ki hash slots, 1Mi search entries and a 256MiB data log.
func DefaultGeometry() Geometry {
	return Geometry{
		HashTableEntries:   1 << 18,
		SearchIndexEntries: 1 << 20,
		DataSize:           256 << 20,
	}
}

// Validate checks that every region is usable and addressable with 32-bit
// offsets.
func (g Geometry) Validate() error {
	if g.HashTableEntries == 0 {
		return fmt.Errorf("%w: hash table needs at least one entry", ErrInvalidArgument)
	}
	if g.SearchIndexEntries <= firstSearchPosition || g.SearchIndexEntries == deadPosition {
		return fmt.Errorf("%w: search index entries must be in (%d, %d)", ErrInvalidArgument, firstSearchPosition, uint32(deadPosition))
	}
	if g.DataSize <= firstDataOffset {
		return fmt.Errorf("%w: data log must be larger than %d bytes", ErrInvalidArgument, firstDataOffset)
	}
	if _, err := conv.Int64ToInt(g.FileSize()); err != nil {
		return fmt.Errorf("%w: shard of %d bytes cannot be mapped", ErrInvalidArgument, g.FileSize())
	}
	return nil
}

func (g Geometry) hashTableSize() int64   { return int64(g.HashTableEntries) * hashEntrySize }
func (g Geometry) searchIndexSize() int64 { return int64(g.SearchIndexEntries) * searchEntrySize }

// FileSize returns the size of the shard file in bytes.
func (g Geometry) FileSize() int64 {
	return g.hashTableSize() + g.searchIndexSize() + int64(g.DataSize)
}

// appendCapacity is the number of bytes the two append-only regions can
// hold, excluding reserved space.
func (g Geometry) appendCapacity() int64 {
	return int64(g.SearchIndexEntries-firstSearchPosition)*searchEntrySize +
		int64(g.DataSize-firstDataOffset)
}

// slotState classifies a hash table word.
type slotState uint8

const (
	slotEmpty slotState = iota
	slotDead
	slotLive
)

func (s slotState) String() string {
	switch s {
	case slotEmpty:
		return "empty"
	case slotDead:
		return "dead"
	default:
		return "live"
	}
}

func packHashSlot(position, primary uint32) uint64 {
	return uint64(position)<<32 | uint64(primary)
}

func slotPosition(w uint64) uint32 { return uint32(w >> 32) }
func slotHash(w uint64) uint32     { return uint32(w) }

func slotStateOf(w uint64) slotState {
	switch {
	case w == 0:
		return slotEmpty
	case slotPosition(w) == deadPosition:
		return slotDead
	default:
		return slotLive
	}
}

// deadSlot keeps the hash bits of the deleted key for diagnostics.
func deadSlot(primary uint32) uint64 { return packHashSlot(deadPosition, primary) }

func packHashes(primary, secondary uint32) uint64 {
	return uint64(secondary)<<32 | uint64(primary)
}

func unpackHashes(w uint64) (primary, secondary uint32) {
	return uint32(w), uint32(w >> 32)
}

func packOffsets(data, invalidated uint32) uint64 {
	return uint64(invalidated)<<32 | uint64(data)
}

func unpackOffsets(w uint64) (data, invalidated uint32) {
	return uint32(w), uint32(w >> 32)
}

// words reinterprets a mapped region as machine words without copying.
func words(b []byte) []uint64 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*uint64)(unsafe.Pointer(&b[0])), len(b)/8)
}
