package shard

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populate(t *testing.T, s *Shard, n int) map[string]uint64 {
	t.Helper()
	live := make(map[string]uint64)
	for i := range n {
		key := fmt.Sprintf("key-%d", i)
		require.NoError(t, s.Put(uint32(i*2654435761), uint32(i), []byte(key), val(key), 1))
		live[key] = 1
	}
	for i := 0; i < n; i += 2 {
		key := fmt.Sprintf("key-%d", i)
		require.NoError(t, s.Put(uint32(i*2654435761), uint32(i), []byte(key), val(key, "v2"), 2))
		live[key] = 2
	}
	for i := 0; i < n; i += 5 {
		key := fmt.Sprintf("key-%d", i)
		require.NoError(t, s.Del(uint32(i*2654435761), []byte(key)))
		delete(live, key)
	}
	return live
}

func TestShard_CopyToClean(t *testing.T) {
	g := Geometry{HashTableEntries: 256, SearchIndexEntries: 512, DataSize: 1 << 14}
	src := newTestShard(t, g)
	dst := newTestShard(t, g)

	live := populate(t, src, 100)
	require.Positive(t, src.StaleSpace())

	copied, err := src.CopyTo(MatchAll, dst)
	require.NoError(t, err)
	assert.Equal(t, len(live), copied)

	assert.Equal(t, 0, dst.StaleSpace())
	st := dst.Stats()
	assert.Equal(t, len(live), st.LiveKeys)
	assert.Equal(t, 0, st.DeadSlots)
	assert.Equal(t, uint64(0), st.StaleBytes())
	assert.Equal(t, src.Stats().LiveBytes, st.LiveBytes)

	for i := range 100 {
		key := fmt.Sprintf("key-%d", i)
		v, version, err := dst.Get(uint32(i*2654435761), []byte(key))
		want, ok := live[key]
		if !ok {
			assert.ErrorIs(t, err, ErrNotFound, key)
			continue
		}
		require.NoError(t, err, key)
		assert.Equal(t, want, version)
		if want == 2 {
			assert.Equal(t, val(key, "v2"), v)
		} else {
			assert.Equal(t, val(key), v)
		}
	}

	// The destination is a fully working shard.
	require.NoError(t, dst.Put(1, 0, []byte("new"), val("x"), 1))
	require.NoError(t, dst.Del(1, []byte("new")))
}

func TestShard_CopyToPreservesWriteOrder(t *testing.T) {
	src := newTestShard(t, smallGeometry())
	dst := newTestShard(t, smallGeometry())
	for i, k := range []string{"c", "a", "b"} {
		require.NoError(t, src.Put(uint32(100-i), 0, []byte(k), val(k), 1))
	}
	require.NoError(t, src.Put(100, 0, []byte("c"), val("c2"), 2))

	_, err := src.CopyTo(nil, dst)
	require.NoError(t, err)

	snap, err := dst.Snapshot()
	require.NoError(t, err)
	defer snap.Close()

	var keys []string
	for rec := range snap.All() {
		keys = append(keys, string(rec.Key))
	}
	assert.Equal(t, []string{"a", "b", "c"}, keys)
}

func TestShard_CopyToSplit(t *testing.T) {
	g := Geometry{HashTableEntries: 256, SearchIndexEntries: 512, DataSize: 1 << 14}
	src := newTestShard(t, g)
	lo := newTestShard(t, g)
	hi := newTestShard(t, g)
	live := populate(t, src, 100)

	loCoord, hiCoord, ok := HashCoordinate{}.Split()
	require.True(t, ok)

	nlo, err := src.CopyTo(loCoord, lo)
	require.NoError(t, err)
	nhi, err := src.CopyTo(hiCoord, hi)
	require.NoError(t, err)
	assert.Equal(t, len(live), nlo+nhi)

	for i := range 100 {
		key := fmt.Sprintf("key-%d", i)
		primary := uint32(i * 2654435761)
		if _, ok := live[key]; !ok {
			continue
		}
		owner, other := lo, hi
		if primary&1 == 1 {
			owner, other = hi, lo
		}
		_, _, err := owner.Get(primary, []byte(key))
		assert.NoError(t, err, key)
		_, _, err = other.Get(primary, []byte(key))
		assert.ErrorIs(t, err, ErrNotFound, key)
	}
}

func TestShard_CopyToResetsDestination(t *testing.T) {
	src := newTestShard(t, smallGeometry())
	dst := newTestShard(t, smallGeometry())
	require.NoError(t, src.Put(1, 0, []byte("a"), val("1"), 1))
	require.NoError(t, dst.Put(2, 0, []byte("old"), val("x"), 1))
	require.NoError(t, dst.Del(2, []byte("old")))

	_, err := src.CopyTo(MatchAll, dst)
	require.NoError(t, err)

	_, _, err = dst.Get(2, []byte("old"))
	assert.ErrorIs(t, err, ErrNotFound)
	st := dst.Stats()
	assert.Equal(t, 1, st.LiveKeys)
	assert.Equal(t, 0, st.DeadSlots)
	assert.Equal(t, uint32(1), st.SearchUsed)
}

func TestShard_CopyToNoMatch(t *testing.T) {
	src := newTestShard(t, smallGeometry())
	dst := newTestShard(t, smallGeometry())
	populate(t, src, 10)

	none := CoordinateFunc(func(uint32, uint32) bool { return false })
	copied, err := src.CopyTo(none, dst)
	require.NoError(t, err)
	assert.Zero(t, copied)
	assert.Equal(t, 0, dst.UsedSpace())
}

func TestShard_CopyToErrors(t *testing.T) {
	src := newTestShard(t, smallGeometry())
	populate(t, src, 20)

	_, err := src.CopyTo(MatchAll, src)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = src.CopyTo(MatchAll, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	tests := []struct {
		name string
		g    Geometry
		want error
	}{
		{"hash", Geometry{HashTableEntries: 4, SearchIndexEntries: 64, DataSize: 4096}, ErrHashFull},
		{"search", Geometry{HashTableEntries: 64, SearchIndexEntries: 5, DataSize: 4096}, ErrSearchFull},
		{"data", Geometry{HashTableEntries: 64, SearchIndexEntries: 64, DataSize: 64}, ErrDataFull},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := newTestShard(t, tt.g)
			copied, err := src.CopyTo(MatchAll, dst)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, copied, dst.Stats().LiveKeys)
		})
	}
}

func TestShard_LiveSet(t *testing.T) {
	s := newTestShard(t, smallGeometry())
	require.NoError(t, s.Put(1, 0, []byte("a"), val("1"), 1)) // pos 1
	require.NoError(t, s.Put(2, 0, []byte("b"), val("1"), 1)) // pos 2
	require.NoError(t, s.Put(1, 0, []byte("a"), val("2"), 2)) // pos 3
	require.NoError(t, s.Del(2, []byte("b")))

	assert.Equal(t, []uint32{3}, s.LiveSet().ToArray())
}

func TestFindFreeBucket_Preconditions(t *testing.T) {
	s := newTestShard(t, Geometry{HashTableEntries: 2, SearchIndexEntries: 8, DataSize: 256})
	require.NoError(t, s.Put(0, 0, []byte("a"), val("1"), 1))
	require.NoError(t, s.Del(0, []byte("a")))
	assert.Panics(t, func() { s.findFreeBucket(0) })

	s.reset()
	assert.Equal(t, 1, s.findFreeBucket(1))
	s.table.store(0, packHashSlot(1, 0))
	s.table.store(1, packHashSlot(2, 1))
	assert.Panics(t, func() { s.findFreeBucket(0) })
}
