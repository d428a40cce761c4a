package archive

import (
	"encoding/binary"
	"errors"

	"github.com/google/uuid"

	"github.com/agiz/HyperDex/shard"
)

const (
	magic         = "HDXA"
	formatVersion = 1

	headerSize      = 4 + 1 + 1 + 2 + 16 + 3*4
	frameHeaderSize = 1 + 4 + 4 + 4
	trailerSize     = 8

	// DefaultBlockSize is the raw size a frame is flushed at.
	DefaultBlockSize = 256 << 10

	// maxFrameSize bounds allocations when reading untrusted input.
	maxFrameSize = 64 << 20
)

const (
	frameCompressed uint8 = 1 << iota
	frameEnd
)

var (
	// ErrCorrupt is returned when an archive fails validation.
	ErrCorrupt = errors.New("archive: corrupt archive")
	// ErrVersion is returned for archives written by a newer format.
	ErrVersion = errors.New("archive: unsupported format version")
)

// Header describes an archive.
type Header struct {
	// ID identifies one export.
	ID    uuid.UUID
	Codec Codec
	// Geometry is the geometry of the shard the snapshot was taken from.
	Geometry shard.Geometry
}

func (h Header) marshal() []byte {
	b := make([]byte, headerSize)
	copy(b, magic)
	b[4] = formatVersion
	b[5] = byte(h.Codec)
	copy(b[8:24], h.ID[:])
	binary.LittleEndian.PutUint32(b[24:], h.Geometry.HashTableEntries)
	binary.LittleEndian.PutUint32(b[28:], h.Geometry.SearchIndexEntries)
	binary.LittleEndian.PutUint32(b[32:], h.Geometry.DataSize)
	return b
}

func unmarshalHeader(b []byte) (Header, error) {
	var h Header
	if string(b[:4]) != magic {
		return h, ErrCorrupt
	}
	if b[4] != formatVersion {
		return h, ErrVersion
	}
	h.Codec = Codec(b[5])
	if !h.Codec.valid() {
		return h, ErrUnknownCodec
	}
	copy(h.ID[:], b[8:24])
	h.Geometry = shard.Geometry{
		HashTableEntries:   binary.LittleEndian.Uint32(b[24:]),
		SearchIndexEntries: binary.LittleEndian.Uint32(b[28:]),
		DataSize:           binary.LittleEndian.Uint32(b[32:]),
	}
	return h, nil
}

// appendRecord encodes rec onto buf.
func appendRecord(buf []byte, rec shard.Record) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, rec.Primary)
	buf = binary.LittleEndian.AppendUint32(buf, rec.Secondary)
	buf = binary.LittleEndian.AppendUint64(buf, rec.Version)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(rec.Key)))
	buf = append(buf, rec.Key...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(rec.Value)))
	for _, v := range rec.Value {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(v)))
		buf = append(buf, v...)
	}
	return buf
}

// decodeRecord decodes the record at the start of b and returns the rest.
// Key and value buffers alias b.
func decodeRecord(b []byte) (shard.Record, []byte, error) {
	var rec shard.Record

	next := func(n int) ([]byte, bool) {
		if len(b) < n {
			return nil, false
		}
		out := b[:n:n]
		b = b[n:]
		return out, true
	}
	u32 := func() (uint32, bool) {
		v, ok := next(4)
		if !ok {
			return 0, false
		}
		return binary.LittleEndian.Uint32(v), true
	}

	var ok bool
	if rec.Primary, ok = u32(); !ok {
		return rec, nil, ErrCorrupt
	}
	if rec.Secondary, ok = u32(); !ok {
		return rec, nil, ErrCorrupt
	}
	v, ok := next(8)
	if !ok {
		return rec, nil, ErrCorrupt
	}
	rec.Version = binary.LittleEndian.Uint64(v)

	keyLen, ok := u32()
	if !ok {
		return rec, nil, ErrCorrupt
	}
	if rec.Key, ok = next(int(keyLen)); !ok {
		return rec, nil, ErrCorrupt
	}

	count, ok := u32()
	if !ok || int(count) > len(b)/4 {
		return rec, nil, ErrCorrupt
	}
	rec.Value = make([][]byte, count)
	for i := range rec.Value {
		n, ok := u32()
		if !ok {
			return rec, nil, ErrCorrupt
		}
		if rec.Value[i], ok = next(int(n)); !ok {
			return rec, nil, ErrCorrupt
		}
	}
	return rec, b, nil
}
