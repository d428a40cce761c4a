package archive

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec selects the frame compression algorithm.
type Codec uint8

const (
	// CodecNone stores frames uncompressed.
	CodecNone Codec = 0
	// CodecLZ4 uses LZ4 block compression (fastest).
	CodecLZ4 Codec = 1
	// CodecZstd uses Zstandard (best ratio).
	CodecZstd Codec = 2
	// CodecSnappy uses Snappy.
	CodecSnappy Codec = 3
)

// ErrUnknownCodec is returned for codec identifiers this version cannot read.
var ErrUnknownCodec = errors.New("archive: unknown codec")

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecLZ4:
		return "lz4"
	case CodecZstd:
		return "zstd"
	case CodecSnappy:
		return "snappy"
	default:
		return fmt.Sprintf("codec(%d)", uint8(c))
	}
}

// ParseCodec parses the names returned by Codec.String.
func ParseCodec(s string) (Codec, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return CodecNone, nil
	case "lz4":
		return CodecLZ4, nil
	case "zstd":
		return CodecZstd, nil
	case "snappy":
		return CodecSnappy, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCodec, s)
	}
}

// UnmarshalText lets a Codec be read from YAML and flags.
func (c *Codec) UnmarshalText(text []byte) error {
	parsed, err := ParseCodec(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (c Codec) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c Codec) valid() bool { return c <= CodecSnappy }

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// compress returns the compressed form of raw, or nil when the codec is
// CodecNone or compression saves less than 10%.
func (c Codec) compress(raw []byte) ([]byte, error) {
	var out []byte
	switch c {
	case CodecNone:
		return nil, nil
	case CodecLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, buf, nil)
		if err != nil {
			return nil, err
		}
		out = buf[:n] // n == 0: incompressible
	case CodecZstd:
		enc := getZstdEncoder()
		out = enc.EncodeAll(raw, nil)
		zstdEncoderPool.Put(enc)
	case CodecSnappy:
		out = snappy.Encode(nil, raw)
	default:
		return nil, ErrUnknownCodec
	}

	if len(out) == 0 || len(out) > len(raw)*9/10 {
		return nil, nil
	}
	return out, nil
}

func (c Codec) decompress(stored []byte, rawLen int) ([]byte, error) {
	raw := make([]byte, rawLen)
	switch c {
	case CodecLZ4:
		n, err := lz4.UncompressBlock(stored, raw)
		if err != nil {
			return nil, err
		}
		raw = raw[:n]
	case CodecZstd:
		dec := getZstdDecoder()
		out, err := dec.DecodeAll(stored, raw[:0])
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, err
		}
		raw = out
	case CodecSnappy:
		out, err := snappy.Decode(raw, stored)
		if err != nil {
			return nil, err
		}
		raw = out
	default:
		return nil, ErrUnknownCodec
	}

	if len(raw) != rawLen {
		return nil, fmt.Errorf("%w: decompressed %d bytes, want %d", ErrCorrupt, len(raw), rawLen)
	}
	return raw, nil
}
