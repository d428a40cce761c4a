package archive

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/google/uuid"

	"github.com/agiz/HyperDex/internal/hash"
	"github.com/agiz/HyperDex/shard"
)

// ErrClosed is returned when writing to a closed Writer.
var ErrClosed = errors.New("archive: writer closed")

// Writer encodes records into an archive.
type Writer struct {
	w         io.Writer
	header    Header
	blockSize int

	buf     []byte
	frame   [frameHeaderSize]byte
	records uint64
	frames  int
	written int64
	closed  bool
}

// NewWriter writes the archive header and returns a Writer for the records
// of a shard with geometry g.
func NewWriter(w io.Writer, g shard.Geometry, optFns ...Option) (*Writer, error) {
	o := applyOptions(optFns)
	if !o.codec.valid() {
		return nil, ErrUnknownCodec
	}

	aw := &Writer{
		w:         w,
		header:    Header{ID: uuid.New(), Codec: o.codec, Geometry: g},
		blockSize: o.blockSize,
		buf:       make([]byte, 0, o.blockSize),
	}
	if err := aw.write(aw.header.marshal()); err != nil {
		return nil, err
	}
	return aw, nil
}

// Header returns the header written at the start of the archive.
func (aw *Writer) Header() Header { return aw.header }

// Add appends a record. Records are buffered and written in frames.
func (aw *Writer) Add(rec shard.Record) error {
	if aw.closed {
		return ErrClosed
	}
	aw.buf = appendRecord(aw.buf, rec)
	aw.records++
	if len(aw.buf) >= aw.blockSize {
		return aw.flush()
	}
	return nil
}

func (aw *Writer) flush() error {
	if len(aw.buf) == 0 {
		return nil
	}
	if len(aw.buf) > maxFrameSize {
		return errors.New("archive: record larger than the maximum frame size")
	}

	payload, err := aw.header.Codec.compress(aw.buf)
	if err != nil {
		return err
	}
	flags := frameCompressed
	if payload == nil {
		payload, flags = aw.buf, 0
	}

	aw.frame[0] = flags
	binary.LittleEndian.PutUint32(aw.frame[1:], uint32(len(aw.buf)))
	binary.LittleEndian.PutUint32(aw.frame[5:], uint32(len(payload)))
	binary.LittleEndian.PutUint32(aw.frame[9:], hash.CRC32C(aw.buf))
	if err := aw.write(aw.frame[:]); err != nil {
		return err
	}
	if err := aw.write(payload); err != nil {
		return err
	}

	aw.frames++
	aw.buf = aw.buf[:0]
	return nil
}

func (aw *Writer) write(p []byte) error {
	n, err := aw.w.Write(p)
	aw.written += int64(n)
	return err
}

// Close flushes buffered records and writes the trailer. It does not close
// the underlying writer.
func (aw *Writer) Close() error {
	if aw.closed {
		return nil
	}
	aw.closed = true

	if err := aw.flush(); err != nil {
		return err
	}

	var end [frameHeaderSize + trailerSize]byte
	end[0] = frameEnd
	binary.LittleEndian.PutUint64(end[frameHeaderSize:], aw.records)
	return aw.write(end[:])
}

// Stats summarizes a finished archive.
type Stats struct {
	ID      uuid.UUID
	Records uint64
	Frames  int
	Bytes   int64
}

// Stats reports what was written so far.
func (aw *Writer) Stats() Stats {
	return Stats{ID: aw.header.ID, Records: aw.records, Frames: aw.frames, Bytes: aw.written}
}
