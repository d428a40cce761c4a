package shard

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuarded_ConcurrentAccess(t *testing.T) {
	g := NewGuarded(newTestShard(t, Geometry{HashTableEntries: 1024, SearchIndexEntries: 8192, DataSize: 1 << 18}))

	const writers, perWriter = 4, 200
	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWriter {
				key := []byte(fmt.Sprintf("w%d-%d", w, i))
				assert.NoError(t, g.Put(uint32(w*perWriter+i), uint32(w), key, val("v"), uint64(i)))
			}
		}()
	}
	for r := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWriter {
				key := []byte(fmt.Sprintf("w%d-%d", r, i))
				_, _, err := g.Get(uint32(r*perWriter+i), key)
				if err != nil {
					assert.ErrorIs(t, err, ErrNotFound)
				}
				_ = g.UsedSpace()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, writers*perWriter, g.Stats().LiveKeys)
	assert.Equal(t, 0, g.StaleSpace())
	require.NoError(t, g.Sync())
	require.NoError(t, g.Async())
}

func TestGuarded_SnapshotAndCopy(t *testing.T) {
	src := NewGuarded(newTestShard(t, smallGeometry()))
	dst := NewGuarded(newTestShard(t, smallGeometry()))

	require.NoError(t, src.Put(1, 0, []byte("a"), val("1"), 1))
	require.NoError(t, src.Put(1, 0, []byte("a"), val("2"), 2))
	require.NoError(t, src.Put(2, 0, []byte("b"), val("1"), 1))
	require.NoError(t, src.Del(2, []byte("b")))

	snap, err := src.Snapshot()
	require.NoError(t, err)
	defer snap.Close()

	copied, err := src.CopyTo(MatchAll, dst)
	require.NoError(t, err)
	assert.Equal(t, 1, copied)

	v, version, err := dst.Get(1, []byte("a"))
	require.NoError(t, err)
	assert.Equal(t, val("2"), v)
	assert.Equal(t, uint64(2), version)

	_, err = src.CopyTo(MatchAll, src)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	assert.Same(t, src.shard, src.Unwrap())
	require.NoError(t, dst.Close())
}

func TestGuarded_CloseIdempotent(t *testing.T) {
	g := NewGuarded(newTestShard(t, smallGeometry()))
	require.NoError(t, g.Put(1, 0, []byte("a"), val("1"), 1))

	require.NoError(t, g.Close())
	assert.NotPanics(t, func() {
		assert.NoError(t, g.Close())
	})

	_, _, err := g.Get(1, []byte("a"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestGuarded_CopyBothWays(t *testing.T) {
	a := NewGuarded(newTestShard(t, smallGeometry()))
	b := NewGuarded(newTestShard(t, smallGeometry()))
	require.NoError(t, a.Put(1, 0, []byte("a"), val("1"), 1))
	require.NoError(t, b.Put(2, 0, []byte("b"), val("1"), 1))

	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for range 200 {
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, _ = a.CopyTo(MatchAll, b)
			}()
			go func() {
				defer wg.Done()
				_, _ = b.CopyTo(MatchAll, a)
			}()
		}
		wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("copies in opposite directions did not finish")
	}

	// Each copy resets its destination, so whichever ran last wins and
	// both shards hold the same single key.
	assert.Equal(t, 1, a.Stats().LiveKeys)
	assert.Equal(t, 1, b.Stats().LiveKeys)
}
