package archive

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/agiz/HyperDex/internal/conv"
	"github.com/agiz/HyperDex/internal/hash"
	"github.com/agiz/HyperDex/shard"
)

// Reader decodes an archive record by record.
//
//	ar, err := archive.NewReader(r)
//	for ar.Next() {
//		rec := ar.Record()
//	}
//	if err := ar.Err(); err != nil { ... }
type Reader struct {
	r      io.Reader
	header Header

	frame   []byte // undecoded remainder of the current frame
	cur     shard.Record
	records uint64
	done    bool
	err     error
}

// NewReader reads and validates the archive header.
func NewReader(r io.Reader) (*Reader, error) {
	var b [headerSize]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return nil, fmt.Errorf("archive: read header: %w", corruptEOF(err))
	}
	h, err := unmarshalHeader(b[:])
	if err != nil {
		return nil, err
	}
	return &Reader{r: r, header: h}, nil
}

// Header returns the archive header.
func (ar *Reader) Header() Header { return ar.header }

// Next decodes the next record and reports whether there is one. At the end
// of the archive the record count in the trailer is verified.
func (ar *Reader) Next() bool {
	if ar.err != nil || ar.done {
		return false
	}

	for len(ar.frame) == 0 {
		end, err := ar.readFrame()
		if err != nil {
			ar.err = err
			return false
		}
		if end {
			ar.done = true
			return false
		}
	}

	rec, rest, err := decodeRecord(ar.frame)
	if err != nil {
		ar.err = err
		return false
	}
	ar.frame = rest
	ar.cur = rec
	ar.records++
	return true
}

// Record returns the record Next stopped at. Its buffers are valid until
// the archive is garbage collected; they are not reused.
func (ar *Reader) Record() shard.Record { return ar.cur }

// Err returns the first error met, or nil at a clean end of the archive.
func (ar *Reader) Err() error { return ar.err }

// Records returns the number of records decoded so far.
func (ar *Reader) Records() uint64 { return ar.records }

// All adapts the reader to a range loop. Iteration stops at the first error,
// which is yielded with a zero record.
func (ar *Reader) All() iter.Seq2[shard.Record, error] {
	return func(yield func(shard.Record, error) bool) {
		for ar.Next() {
			if !yield(ar.Record(), nil) {
				return
			}
		}
		if err := ar.Err(); err != nil {
			yield(shard.Record{}, err)
		}
	}
}

func (ar *Reader) readFrame() (end bool, err error) {
	var fh [frameHeaderSize]byte
	if _, err := io.ReadFull(ar.r, fh[:]); err != nil {
		return false, corruptEOF(err)
	}
	flags := fh[0]
	rawLen := binary.LittleEndian.Uint32(fh[1:])
	storedLen := binary.LittleEndian.Uint32(fh[5:])
	sum := binary.LittleEndian.Uint32(fh[9:])

	if flags&frameEnd != 0 {
		var tr [trailerSize]byte
		if _, err := io.ReadFull(ar.r, tr[:]); err != nil {
			return false, corruptEOF(err)
		}
		if count := binary.LittleEndian.Uint64(tr[:]); count != ar.records {
			return false, fmt.Errorf("%w: trailer counts %d records, read %d", ErrCorrupt, count, ar.records)
		}
		return true, nil
	}

	if rawLen == 0 || rawLen > maxFrameSize || storedLen > maxFrameSize {
		return false, fmt.Errorf("%w: frame of %d bytes", ErrCorrupt, rawLen)
	}
	stored := make([]byte, storedLen)
	if _, err := io.ReadFull(ar.r, stored); err != nil {
		return false, corruptEOF(err)
	}

	raw := stored
	if flags&frameCompressed != 0 {
		n, err := conv.Uint32ToInt(rawLen)
		if err != nil {
			return false, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if raw, err = ar.header.Codec.decompress(stored, n); err != nil {
			return false, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
	} else if storedLen != rawLen {
		return false, fmt.Errorf("%w: raw frame length mismatch", ErrCorrupt)
	}

	if hash.CRC32C(raw) != sum {
		return false, fmt.Errorf("%w: frame checksum mismatch", ErrCorrupt)
	}
	ar.frame = raw
	return false, nil
}

// corruptEOF turns a truncated stream into ErrCorrupt.
func corruptEOF(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: truncated", ErrCorrupt)
	}
	return err
}
