package shard

import (
	"encoding/binary"
	"math"
)

// Data record layout (little-endian):
//
//	[0..7]   version (uint64)
//	[8..11]  key length (uint32)
//	[12..]   key bytes
//	[..+4]   value count (uint32), tombstoneCount for deletions
//	then count times: [length uint32][bytes]
const (
	recordVersionOffset = 0
	recordKeyLenOffset  = 8
	recordKeyOffset     = 12

	lengthSize = 4

	// tombstoneCount in the value count field marks a deletion. An empty
	// value (count 0) stays a valid put.
	tombstoneCount = math.MaxUint32
)

// dataLog is the append-only byte region holding records.
type dataLog struct {
	buf []byte
}

func (d *dataLog) capacity() uint32 { return uint32(len(d.buf)) }

// recordSize returns the encoded size of a record. The result is computed in
// 64 bits so oversized inputs fail the capacity check instead of wrapping.
func recordSize(key []byte, value [][]byte) uint64 {
	n := uint64(recordKeyOffset) + uint64(len(key)) + lengthSize
	for _, v := range value {
		n += lengthSize + uint64(len(v))
	}
	return n
}

func tombstoneSize(key []byte) uint64 {
	return uint64(recordKeyOffset) + uint64(len(key)) + lengthSize
}

// put encodes a record at off and returns its size. The caller has checked
// that it fits.
func (d *dataLog) put(off uint32, version uint64, key []byte, value [][]byte) uint32 {
	p := d.header(off, version, key)
	binary.LittleEndian.PutUint32(d.buf[p:], uint32(len(value)))
	p += lengthSize
	for _, v := range value {
		binary.LittleEndian.PutUint32(d.buf[p:], uint32(len(v)))
		p += lengthSize
		p += uint32(copy(d.buf[p:], v))
	}
	return p - off
}

func (d *dataLog) putTombstone(off uint32, version uint64, key []byte) uint32 {
	p := d.header(off, version, key)
	binary.LittleEndian.PutUint32(d.buf[p:], tombstoneCount)
	return p + lengthSize - off
}

// header writes version and key and returns the offset of the value count.
func (d *dataLog) header(off uint32, version uint64, key []byte) uint32 {
	binary.LittleEndian.PutUint64(d.buf[off+recordVersionOffset:], version)
	binary.LittleEndian.PutUint32(d.buf[off+recordKeyLenOffset:], uint32(len(key)))
	return off + recordKeyOffset + uint32(copy(d.buf[off+recordKeyOffset:], key))
}

// putRaw copies an encoded record verbatim.
func (d *dataLog) putRaw(off uint32, rec []byte) uint32 {
	return uint32(copy(d.buf[off:], rec))
}

func (d *dataLog) version(off uint32) uint64 {
	return binary.LittleEndian.Uint64(d.buf[off+recordVersionOffset:])
}

func (d *dataLog) keySize(off uint32) uint32 {
	return binary.LittleEndian.Uint32(d.buf[off+recordKeyLenOffset:])
}

// key returns the key bytes in place. The slice aliases the mapping.
func (d *dataLog) key(off uint32) []byte {
	start := off + recordKeyOffset
	return d.buf[start : start+d.keySize(off)]
}

func (d *dataLog) countOffset(off uint32) uint32 {
	return off + recordKeyOffset + d.keySize(off)
}

func (d *dataLog) isTombstone(off uint32) bool {
	return binary.LittleEndian.Uint32(d.buf[d.countOffset(off):]) == tombstoneCount
}

// value decodes a copy of the value buffers. Tombstones decode to nil.
func (d *dataLog) value(off uint32) [][]byte {
	p := d.countOffset(off)
	count := binary.LittleEndian.Uint32(d.buf[p:])
	if count == tombstoneCount {
		return nil
	}
	p += lengthSize

	value := make([][]byte, count)
	for i := range value {
		n := binary.LittleEndian.Uint32(d.buf[p:])
		p += lengthSize
		value[i] = make([]byte, n)
		p += uint32(copy(value[i], d.buf[p:p+n]))
	}
	return value
}

// size returns the encoded size of the record at off.
func (d *dataLog) size(off uint32) uint32 {
	p := d.countOffset(off)
	count := binary.LittleEndian.Uint32(d.buf[p:])
	p += lengthSize
	if count == tombstoneCount {
		return p - off
	}
	for range count {
		p += lengthSize + binary.LittleEndian.Uint32(d.buf[p:])
	}
	return p - off
}

// raw returns the encoded record at off in place.
func (d *dataLog) raw(off uint32) []byte {
	return d.buf[off : off+d.size(off)]
}
