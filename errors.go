package hyperdex

import (
	"errors"

	"github.com/agiz/HyperDex/shard"
)

var (
	// ErrNotFound is returned when a key is absent or was deleted.
	ErrNotFound = shard.ErrNotFound
	// ErrDataFull is returned when the data log has no room for a record.
	ErrDataFull = shard.ErrDataFull
	// ErrHashFull is returned when no hash slot is left for a new key.
	ErrHashFull = shard.ErrHashFull
	// ErrSearchFull is returned when the search index is exhausted.
	ErrSearchFull = shard.ErrSearchFull
	// ErrSyncFailed matches every failed Sync or Async.
	ErrSyncFailed = shard.ErrSyncFailed
	// ErrClosed is returned after Close.
	ErrClosed = shard.ErrClosed

	// ErrEmptyKey is returned for zero-length keys.
	ErrEmptyKey = errors.New("hyperdex: empty key")
)

// ReturnCode is the outcome of a shard operation.
type ReturnCode = shard.ReturnCode

// CodeOf maps an error returned by this module to its ReturnCode.
func CodeOf(err error) ReturnCode { return shard.CodeOf(err) }

// IsCapacity reports whether err means the shard must be cleaned or split
// before it accepts the write.
func IsCapacity(err error) bool { return shard.IsCapacity(err) }
