package shard

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Guarded wraps a Shard with the locking its methods require, so it can be
// shared between goroutines directly.
type Guarded struct {
	mu     sync.RWMutex
	shard  *Shard
	closed atomic.Bool
	// order ranks lock acquisition between two Guarded shards.
	order uint64
}

var guardedOrder atomic.Uint64

// NewGuarded takes ownership of s.
func NewGuarded(s *Shard) *Guarded {
	return &Guarded{shard: s, order: guardedOrder.Add(1)}
}

// Unwrap returns the underlying shard. Callers using it directly take over
// the locking contract documented on Shard.
func (g *Guarded) Unwrap() *Shard { return g.shard }

func (g *Guarded) Get(primary uint32, key []byte) ([][]byte, uint64, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.shard.Get(primary, key)
}

func (g *Guarded) Put(primary, secondary uint32, key []byte, value [][]byte, version uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.shard.Put(primary, secondary, key, value, version)
}

func (g *Guarded) Del(primary uint32, key []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.shard.Del(primary, key)
}

// Snapshot holds the read lock only while pinning the cursors.
func (g *Guarded) Snapshot() (*Snapshot, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.shard.Snapshot()
}

// CopyTo blocks writers on g and takes dst exclusively for the whole copy.
//
// The two locks are taken in creation order of the wrappers, not source
// first, so copies running in opposite directions between the same pair
// serialize instead of deadlocking.
func (g *Guarded) CopyTo(coord Coordinate, dst *Guarded) (int, error) {
	if dst == nil || dst == g {
		return 0, fmt.Errorf("%w: copy destination must be another shard", ErrInvalidArgument)
	}
	if g.order < dst.order {
		g.mu.RLock()
		defer g.mu.RUnlock()
		dst.mu.Lock()
		defer dst.mu.Unlock()
	} else {
		dst.mu.Lock()
		defer dst.mu.Unlock()
		g.mu.RLock()
		defer g.mu.RUnlock()
	}
	return g.shard.CopyTo(coord, dst.shard)
}

func (g *Guarded) UsedSpace() int { return g.shard.UsedSpace() }

func (g *Guarded) StaleSpace() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.shard.StaleSpace()
}

func (g *Guarded) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.shard.Stats()
}

// Rename moves the backing file; see Shard.Rename.
func (g *Guarded) Rename(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.shard.Rename(name)
}

func (g *Guarded) Sync() error  { return g.shard.Sync() }
func (g *Guarded) Async() error { return g.shard.Async() }

// Close waits for in-flight operations and drops the shard's reference.
// Subsequent calls are no-ops.
func (g *Guarded) Close() error {
	if !g.closed.CompareAndSwap(false, true) {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.shard.Close()
}
