package shard

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a key is absent or was deleted.
	ErrNotFound = errors.New("shard: not found")

	// ErrDataFull is returned when a record does not fit into the remaining data log.
	ErrDataFull = errors.New("shard: data log full")

	// ErrHashFull is returned when no hash slot is available for a new key.
	ErrHashFull = errors.New("shard: hash table full")

	// ErrSearchFull is returned when the search index has no entry left.
	ErrSearchFull = errors.New("shard: search index full")

	// ErrSyncFailed is matched by every *SyncError.
	ErrSyncFailed = errors.New("shard: sync failed")

	// ErrInvalidArgument is returned for unusable geometries and arguments.
	ErrInvalidArgument = errors.New("shard: invalid argument")

	// ErrClosed is returned when the last reference to a shard was released.
	ErrClosed = errors.New("shard: closed")
)

// SyncError reports a failed flush of the mapping or the backing file.
// The OS error is kept verbatim.
type SyncError struct {
	Op   string // "msync" or "fsync"
	Path string
	Err  error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("shard: %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap exposes both ErrSyncFailed and the underlying OS error.
func (e *SyncError) Unwrap() []error { return []error{ErrSyncFailed, e.Err} }

// ReturnCode is the outcome of a shard operation.
type ReturnCode uint8

const (
	Success ReturnCode = iota
	NotFound
	DataFull
	HashFull
	SearchFull
	SyncFailed
	// Failed covers errors outside the shard's own taxonomy (I/O during
	// creation, invalid arguments, use after close).
	Failed
)

func (c ReturnCode) String() string {
	switch c {
	case Success:
		return "SUCCESS"
	case NotFound:
		return "NOTFOUND"
	case DataFull:
		return "DATAFULL"
	case HashFull:
		return "HASHFULL"
	case SearchFull:
		return "SEARCHFULL"
	case SyncFailed:
		return "SYNCFAILED"
	default:
		return "FAILED"
	}
}

// CodeOf maps an error returned by this package to its ReturnCode.
func CodeOf(err error) ReturnCode {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, ErrNotFound):
		return NotFound
	case errors.Is(err, ErrDataFull):
		return DataFull
	case errors.Is(err, ErrHashFull):
		return HashFull
	case errors.Is(err, ErrSearchFull):
		return SearchFull
	case errors.Is(err, ErrSyncFailed):
		return SyncFailed
	default:
		return Failed
	}
}

// IsCapacity reports whether err signals that the shard must be cleaned or
// split before it accepts more writes.
func IsCapacity(err error) bool {
	switch CodeOf(err) {
	case DataFull, HashFull, SearchFull:
		return true
	default:
		return false
	}
}
