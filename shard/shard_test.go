package shard

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/agiz/HyperDex/internal/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestShard(t *testing.T, g Geometry, opts ...Option) *Shard {
	t.Helper()
	s, err := Create(t.TempDir(), "test.shard", append([]Option{WithGeometry(g)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() {
		if !s.closed.Load() {
			_ = s.Close()
		}
	})
	return s
}

func smallGeometry() Geometry {
	return Geometry{HashTableEntries: 64, SearchIndexEntries: 256, DataSize: 16 << 10}
}

func val(parts ...string) [][]byte {
	v := make([][]byte, len(parts))
	for i, p := range parts {
		v[i] = []byte(p)
	}
	return v
}

func TestShard_Create(t *testing.T) {
	dir := t.TempDir()
	g := smallGeometry()

	s, err := Create(dir, "a.shard", WithGeometry(g))
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, "a.shard"))
	require.NoError(t, err)
	assert.Equal(t, g.FileSize(), info.Size())
	assert.Equal(t, filepath.Join(dir, "a.shard"), s.Path())
	assert.Equal(t, g, s.Geometry())
	assert.Equal(t, 0, s.UsedSpace())
	assert.Equal(t, 0, s.StaleSpace())
	require.NoError(t, s.Close())
}

func TestShard_CreateOverwrites(t *testing.T) {
	dir := t.TempDir()
	g := smallGeometry()

	s, err := Create(dir, "a.shard", WithGeometry(g))
	require.NoError(t, err)
	require.NoError(t, s.Put(1, 0, []byte("k"), val("v"), 1))
	require.NoError(t, s.Sync())
	require.NoError(t, s.Close())

	s, err = Create(dir, "a.shard", WithGeometry(g))
	require.NoError(t, err)
	defer s.Close()

	_, _, err = s.Get(1, []byte("k"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestShard_CreateInvalidGeometry(t *testing.T) {
	tests := []struct {
		name string
		g    Geometry
	}{
		{"no hash slots", Geometry{HashTableEntries: 0, SearchIndexEntries: 4, DataSize: 64}},
		{"only reserved search entry", Geometry{HashTableEntries: 4, SearchIndexEntries: 1, DataSize: 64}},
		{"only reserved data bytes", Geometry{HashTableEntries: 4, SearchIndexEntries: 4, DataSize: 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Create(t.TempDir(), "x.shard", WithGeometry(tt.g))
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func TestShard_CreateFaults(t *testing.T) {
	faulty := fs.NewFaultyFS(nil)

	faulty.AddRule("open.shard", fs.Fault{FailOnOpen: true})
	_, err := Create(t.TempDir(), "open.shard", WithGeometry(smallGeometry()), WithFileSystem(faulty))
	assert.ErrorIs(t, err, fs.ErrInjected)

	faulty.AddRule("trunc.shard", fs.Fault{FailOnTruncate: true})
	_, err = Create(t.TempDir(), "trunc.shard", WithGeometry(smallGeometry()), WithFileSystem(faulty))
	assert.ErrorIs(t, err, fs.ErrInjected)
}

func TestShard_PutGetDel(t *testing.T) {
	s := newTestShard(t, smallGeometry())
	key := []byte("a")

	require.NoError(t, s.Put(7, 0, key, val("x"), 1))
	v, version, err := s.Get(7, key)
	require.NoError(t, err)
	assert.Equal(t, val("x"), v)
	assert.Equal(t, uint64(1), version)

	require.NoError(t, s.Put(7, 0, key, val("y"), 2))
	v, version, err = s.Get(7, key)
	require.NoError(t, err)
	assert.Equal(t, val("y"), v)
	assert.Equal(t, uint64(2), version)

	require.NoError(t, s.Del(7, key))
	_, _, err = s.Get(7, key)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, NotFound, CodeOf(err))

	assert.ErrorIs(t, s.Del(7, key), ErrNotFound)
}

func TestShard_OverwriteInvalidatesOldEntry(t *testing.T) {
	s := newTestShard(t, smallGeometry())
	key := []byte("a")

	require.NoError(t, s.Put(7, 0, key, val("x"), 1))
	data1, invalidated := s.index.offsets(firstSearchPosition)
	assert.Equal(t, uint32(firstDataOffset), data1)
	assert.Zero(t, invalidated)

	require.NoError(t, s.Put(7, 0, key, val("y"), 2))
	data2, invalidated2 := s.index.offsets(firstSearchPosition + 1)
	assert.Zero(t, invalidated2)

	_, invalidated = s.index.offsets(firstSearchPosition)
	assert.NotZero(t, invalidated)
	assert.Equal(t, data2, invalidated)
}

func TestShard_ValueShapes(t *testing.T) {
	s := newTestShard(t, smallGeometry())

	tests := []struct {
		name  string
		key   []byte
		value [][]byte
	}{
		{"empty value", []byte("empty"), [][]byte{}},
		{"empty buffers", []byte("blank"), val("", "")},
		{"many buffers", []byte("many"), val("a", "bb", "ccc", "dddd")},
		{"empty key", []byte{}, val("nokey")},
		{"binary", []byte{0, 1, 2, 0xff}, [][]byte{{0, 0, 0}, {0xff}}},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, s.Put(uint32(i), 0, tt.key, tt.value, uint64(i)))
			v, version, err := s.Get(uint32(i), tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.value, v)
			assert.Equal(t, uint64(i), version)
		})
	}
}

func TestShard_GetReturnsCopy(t *testing.T) {
	s := newTestShard(t, smallGeometry())
	require.NoError(t, s.Put(1, 0, []byte("k"), val("value"), 1))

	v, _, err := s.Get(1, []byte("k"))
	require.NoError(t, err)
	v[0][0] = 'X'

	v, _, err = s.Get(1, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, val("value"), v)
}

func TestShard_HashCollisions(t *testing.T) {
	// Primaries 1, 5 and 9 all start probing at slot 1.
	s := newTestShard(t, Geometry{HashTableEntries: 4, SearchIndexEntries: 32, DataSize: 1024})

	require.NoError(t, s.Put(1, 0, []byte("a"), val("1"), 1))
	require.NoError(t, s.Put(5, 0, []byte("b"), val("2"), 1))
	require.NoError(t, s.Put(1, 0, []byte("c"), val("3"), 1))

	for _, tc := range []struct {
		primary uint32
		key     string
		want    string
	}{{1, "a", "1"}, {5, "b", "2"}, {1, "c", "3"}} {
		v, _, err := s.Get(tc.primary, []byte(tc.key))
		require.NoError(t, err, tc.key)
		assert.Equal(t, val(tc.want), v)
	}

	// Same primary hash, different key.
	_, _, err := s.Get(1, []byte("b"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestShard_DeadSlots(t *testing.T) {
	s := newTestShard(t, Geometry{HashTableEntries: 4, SearchIndexEntries: 32, DataSize: 1024})

	require.NoError(t, s.Put(1, 0, []byte("a"), val("1"), 1)) // slot 1
	require.NoError(t, s.Put(5, 0, []byte("b"), val("2"), 1)) // slot 2
	require.NoError(t, s.Del(1, []byte("a")))
	assert.Equal(t, slotDead, slotStateOf(s.table.load(1)))

	// A key behind a dead slot is still reachable.
	v, _, err := s.Get(5, []byte("b"))
	require.NoError(t, err)
	assert.Equal(t, val("2"), v)

	// Overwriting it must not create a duplicate in the dead slot.
	require.NoError(t, s.Put(5, 0, []byte("b"), val("3"), 2))
	assert.Equal(t, slotDead, slotStateOf(s.table.load(1)))
	assert.Equal(t, 1, s.Stats().LiveKeys)

	// A new key reuses the first dead slot.
	require.NoError(t, s.Put(9, 0, []byte("c"), val("4"), 1))
	assert.Equal(t, slotLive, slotStateOf(s.table.load(1)))
	assert.Equal(t, uint32(9), slotHash(s.table.load(1)))
	assert.Equal(t, 0, s.Stats().DeadSlots)
}

func TestShard_HashFull(t *testing.T) {
	s := newTestShard(t, Geometry{HashTableEntries: 2, SearchIndexEntries: 32, DataSize: 1024})

	require.NoError(t, s.Put(0, 0, []byte("a"), val("1"), 1))
	require.NoError(t, s.Put(1, 0, []byte("b"), val("2"), 1))

	before := s.usage()
	err := s.Put(2, 0, []byte("c"), val("3"), 1)
	assert.ErrorIs(t, err, ErrHashFull)
	assert.Equal(t, HashFull, CodeOf(err))
	assert.True(t, IsCapacity(err))
	assert.Equal(t, before, s.usage())

	// Overwrites do not need a new slot.
	require.NoError(t, s.Put(0, 0, []byte("a"), val("1b"), 2))

	// A deleted key frees its slot for reuse.
	require.NoError(t, s.Del(1, []byte("b")))
	require.NoError(t, s.Put(2, 0, []byte("c"), val("3"), 1))
	v, _, err := s.Get(2, []byte("c"))
	require.NoError(t, err)
	assert.Equal(t, val("3"), v)
}

func TestShard_SearchFull(t *testing.T) {
	// Position 0 is reserved: two usable entries.
	s := newTestShard(t, Geometry{HashTableEntries: 8, SearchIndexEntries: 3, DataSize: 1024})

	require.NoError(t, s.Put(1, 0, []byte("a"), val("1"), 1))
	require.NoError(t, s.Put(1, 0, []byte("a"), val("2"), 2))

	before := s.usage()
	err := s.Put(1, 0, []byte("a"), val("3"), 3)
	assert.ErrorIs(t, err, ErrSearchFull)
	assert.Equal(t, SearchFull, CodeOf(err))
	assert.Equal(t, before, s.usage())

	v, version, err := s.Get(1, []byte("a"))
	require.NoError(t, err)
	assert.Equal(t, val("2"), v)
	assert.Equal(t, uint64(2), version)

	// Deletes append no search entry.
	require.NoError(t, s.Del(1, []byte("a")))
}

func TestShard_DataFull(t *testing.T) {
	size := recordSize([]byte("k"), val("v"))
	require.Equal(t, uint64(22), size)

	s := newTestShard(t, Geometry{HashTableEntries: 8, SearchIndexEntries: 32, DataSize: firstDataOffset + 2*22})

	require.NoError(t, s.Put(1, 0, []byte("k"), val("v"), 1))
	require.NoError(t, s.Put(2, 0, []byte("k"), val("v"), 1))

	before := s.Stats()
	err := s.Put(3, 0, []byte("k"), val("v"), 1)
	assert.ErrorIs(t, err, ErrDataFull)
	assert.Equal(t, DataFull, CodeOf(err))
	assert.Equal(t, before, s.Stats())

	_, _, err = s.Get(3, []byte("k"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, uint32(44), before.DataUsed)
}

func TestShard_DelDataFull(t *testing.T) {
	// Room for one record and less than one tombstone.
	s := newTestShard(t, Geometry{HashTableEntries: 8, SearchIndexEntries: 32, DataSize: firstDataOffset + 22 + 16})

	require.NoError(t, s.Put(1, 0, []byte("k"), val("v"), 1))
	err := s.Del(1, []byte("k"))
	assert.ErrorIs(t, err, ErrDataFull)

	v, _, err := s.Get(1, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, val("v"), v)
}

func TestShard_OversizedPut(t *testing.T) {
	s := newTestShard(t, smallGeometry())
	big := make([]byte, smallGeometry().DataSize)
	assert.ErrorIs(t, s.Put(1, 0, []byte("k"), [][]byte{big}, 1), ErrDataFull)
}

func TestShard_ManyKeys(t *testing.T) {
	s := newTestShard(t, Geometry{HashTableEntries: 512, SearchIndexEntries: 2048, DataSize: 1 << 16})

	for i := range 300 {
		key := []byte(fmt.Sprintf("key-%03d", i))
		require.NoError(t, s.Put(uint32(i*7), uint32(i), key, val(fmt.Sprintf("v%d", i)), uint64(i)))
	}
	for i := 0; i < 300; i += 3 {
		require.NoError(t, s.Del(uint32(i*7), []byte(fmt.Sprintf("key-%03d", i))))
	}
	for i := range 300 {
		v, version, err := s.Get(uint32(i*7), []byte(fmt.Sprintf("key-%03d", i)))
		if i%3 == 0 {
			assert.ErrorIs(t, err, ErrNotFound)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, val(fmt.Sprintf("v%d", i)), v)
		assert.Equal(t, uint64(i), version)
	}
	assert.Equal(t, 200, s.Stats().LiveKeys)
}

func TestShard_SyncAsync(t *testing.T) {
	s := newTestShard(t, smallGeometry())
	require.NoError(t, s.Put(1, 0, []byte("k"), val("v"), 1))
	require.NoError(t, s.Async())
	require.NoError(t, s.Sync())

	// The data is visible through the file after a sync.
	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	dataStart := s.geometry.hashTableSize() + s.geometry.searchIndexSize()
	assert.Equal(t, byte('k'), raw[dataStart+firstDataOffset+recordKeyOffset])
}

func TestShard_SyncFailure(t *testing.T) {
	faulty := fs.NewFaultyFS(nil)
	s := newTestShard(t, smallGeometry(), WithFileSystem(faulty))

	faulty.AddRule("test.shard", fs.Fault{FailOnSync: true})
	// Rules apply to files opened after they were added.
	require.NoError(t, s.Sync())
	require.NoError(t, s.Close())

	s, err := Create(filepath.Dir(s.Path()), "test.shard", WithGeometry(smallGeometry()), WithFileSystem(faulty))
	require.NoError(t, err)
	defer s.Close()

	err = s.Sync()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSyncFailed)
	assert.ErrorIs(t, err, fs.ErrInjected)
	assert.Equal(t, SyncFailed, CodeOf(err))

	var syncErr *SyncError
	require.True(t, errors.As(err, &syncErr))
	assert.Equal(t, "fsync", syncErr.Op)
	assert.Equal(t, s.Path(), syncErr.Path)

	// MS_ASYNC never touches the file descriptor.
	assert.NoError(t, s.Async())
}

func TestShard_RefCounting(t *testing.T) {
	s := newTestShard(t, smallGeometry())
	require.NoError(t, s.Put(1, 0, []byte("k"), val("v"), 1))

	s.IncRef()
	require.NoError(t, s.DecRef())
	_, _, err := s.Get(1, []byte("k"))
	require.NoError(t, err)

	require.NoError(t, s.Close())
	_, _, err = s.Get(1, []byte("k"))
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Put(1, 0, []byte("k"), val("v"), 2), ErrClosed)
	assert.ErrorIs(t, s.Del(1, []byte("k")), ErrClosed)
	assert.ErrorIs(t, s.Sync(), ErrClosed)
	_, err = s.Snapshot()
	assert.ErrorIs(t, err, ErrClosed)

	assert.Panics(t, func() { _ = s.DecRef() })
}

func TestShard_Rename(t *testing.T) {
	s := newTestShard(t, smallGeometry())
	require.NoError(t, s.Put(1, 2, []byte("k"), val("v"), 1))
	old := s.Path()

	require.NoError(t, s.Rename("renamed.shard"))
	assert.Equal(t, filepath.Join(filepath.Dir(old), "renamed.shard"), s.Path())
	_, err := os.Stat(old)
	assert.True(t, os.IsNotExist(err))

	// The mapping survives the rename.
	require.NoError(t, s.Put(3, 4, []byte("k2"), val("v2"), 1))
	got, _, err := s.Get(1, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, val("v"), got)
	require.NoError(t, s.Sync())

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Rename("again.shard"), ErrClosed)
}
