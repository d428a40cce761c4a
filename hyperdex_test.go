package hyperdex_test

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agiz/HyperDex"
	"github.com/agiz/HyperDex/shard"
	"github.com/agiz/HyperDex/testutil"
)

var testGeometry = shard.Geometry{HashTableEntries: 4096, SearchIndexEntries: 16384, DataSize: 4 << 20}

func newDB(t *testing.T, optFns ...hyperdex.Option) *hyperdex.DB {
	t.Helper()
	optFns = append([]hyperdex.Option{hyperdex.WithGeometry(testGeometry)}, optFns...)
	db, err := hyperdex.Create(t.TempDir(), "test.shard", optFns...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestDB_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)

	key := []byte("user:42")
	require.NoError(t, db.Put(ctx, key, [][]byte{[]byte("alice"), nil}, 1))

	item, err := db.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, key, item.Key)
	assert.Equal(t, [][]byte{[]byte("alice"), {}}, item.Value)
	assert.Equal(t, uint64(1), item.Version)

	require.NoError(t, db.Put(ctx, key, [][]byte{[]byte("bob")}, 2))
	item, err = db.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), item.Version)

	require.NoError(t, db.Delete(ctx, key))
	_, err = db.Get(ctx, key)
	assert.ErrorIs(t, err, hyperdex.ErrNotFound)
	assert.Equal(t, shard.NotFound, hyperdex.CodeOf(err))

	assert.ErrorIs(t, db.Delete(ctx, key), hyperdex.ErrNotFound)
}

func TestDB_Validation(t *testing.T) {
	db := newDB(t)

	assert.ErrorIs(t, db.Put(context.Background(), nil, nil, 1), hyperdex.ErrEmptyKey)
	_, err := db.Get(context.Background(), []byte{})
	assert.ErrorIs(t, err, hyperdex.ErrEmptyKey)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, db.Put(ctx, []byte("k"), nil, 1), context.Canceled)
}

func TestDB_Capacity(t *testing.T) {
	ctx := context.Background()
	db, err := hyperdex.Create(t.TempDir(), "small.shard",
		hyperdex.WithGeometry(shard.Geometry{HashTableEntries: 4, SearchIndexEntries: 64, DataSize: 4096}))
	require.NoError(t, err)
	defer db.Close()

	var last error
	for i := range 5 {
		last = db.Put(ctx, fmt.Appendf(nil, "k%d", i), nil, 1)
	}
	assert.ErrorIs(t, last, hyperdex.ErrHashFull)
	assert.True(t, hyperdex.IsCapacity(last))
}

func TestDB_Model(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	rng := testutil.NewRNG(7)
	keys := testutil.Keys("k", 200)

	model := map[string][][]byte{}
	for i, op := range rng.Workload(3000, keys, testutil.Mix{Get: 0.4, Put: 0.45, Del: 0.15}, 1.2) {
		switch op.Kind {
		case testutil.OpPut:
			require.NoError(t, db.Put(ctx, op.Key, op.Value, uint64(i)))
			model[string(op.Key)] = op.Value
		case testutil.OpDel:
			err := db.Delete(ctx, op.Key)
			if _, ok := model[string(op.Key)]; ok {
				require.NoError(t, err)
				delete(model, string(op.Key))
			} else {
				require.ErrorIs(t, err, hyperdex.ErrNotFound)
			}
		case testutil.OpGet:
			item, err := db.Get(ctx, op.Key)
			if want, ok := model[string(op.Key)]; ok {
				require.NoError(t, err)
				require.Equal(t, normalize(want), item.Value)
			} else {
				require.ErrorIs(t, err, hyperdex.ErrNotFound)
			}
		}
	}

	scanned := 0
	for item, err := range db.Scan(ctx) {
		require.NoError(t, err)
		assert.Equal(t, normalize(model[string(item.Key)]), item.Value)
		scanned++
	}
	assert.Equal(t, len(model), scanned)
	assert.Equal(t, len(model), db.Stats().LiveKeys)
}

// normalize maps nil buffers to empty ones, as decoded values never hold nil.
func normalize(value [][]byte) [][]byte {
	out := make([][]byte, len(value))
	for i, b := range value {
		out[i] = append([]byte{}, b...)
	}
	return out
}

func TestDB_ScanIsolation(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	for i := range 10 {
		require.NoError(t, db.Put(ctx, fmt.Appendf(nil, "k%d", i), [][]byte{[]byte("v")}, 1))
	}

	n := 0
	for _, err := range db.Scan(ctx) {
		require.NoError(t, err)
		if n == 0 {
			require.NoError(t, db.Put(ctx, []byte("late"), nil, 1))
			require.NoError(t, db.Delete(ctx, []byte("k9")))
		}
		n++
	}
	assert.Equal(t, 10, n)
}

func TestDB_ScanCanceled(t *testing.T) {
	db := newDB(t)
	require.NoError(t, db.Put(context.Background(), []byte("k"), nil, 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var errs []error
	for _, err := range db.Scan(ctx) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], context.Canceled)
}

func TestDB_Concurrent(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	keys := testutil.Keys("k", 64)

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				key := keys[(w*200+i)%len(keys)]
				if i%2 == 0 {
					assert.NoError(t, db.Put(ctx, key, [][]byte{key}, uint64(i)))
				} else if item, err := db.Get(ctx, key); err == nil {
					assert.Equal(t, [][]byte{key}, item.Value)
				}
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, db.Stats().LiveKeys, len(keys))
	assert.Positive(t, db.UsedSpace())
}

func TestDB_SyncAndClose(t *testing.T) {
	ctx := context.Background()
	obs := &hyperdex.BasicMetricsObserver{}
	db, err := hyperdex.Create(t.TempDir(), "close.shard",
		hyperdex.WithGeometry(testGeometry),
		hyperdex.WithMetricsObserver(obs),
	)
	require.NoError(t, err)
	assert.Equal(t, testGeometry, db.Geometry())
	assert.Contains(t, db.Path(), "close.shard")

	require.NoError(t, db.Put(ctx, []byte("k"), nil, 1))
	require.NoError(t, db.Sync(ctx))
	require.NoError(t, db.Async(ctx))
	assert.Equal(t, int64(2), obs.GetStats().SyncCount)

	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	assert.ErrorIs(t, db.Put(ctx, []byte("k"), nil, 2), hyperdex.ErrClosed)
	assert.ErrorIs(t, db.Sync(ctx), hyperdex.ErrClosed)
	for _, err := range db.Scan(ctx) {
		assert.ErrorIs(t, err, hyperdex.ErrClosed)
	}
}

func TestDB_CustomHasher(t *testing.T) {
	ctx := context.Background()
	constant := func([]byte) (uint32, uint32) { return 7, 7 }
	db := newDB(t, hyperdex.WithHasher(constant))

	// Every key collides; probing must still tell them apart.
	for i := range 20 {
		require.NoError(t, db.Put(ctx, fmt.Appendf(nil, "k%d", i), [][]byte{{byte(i)}}, 1))
	}
	for i := range 20 {
		item, err := db.Get(ctx, fmt.Appendf(nil, "k%d", i))
		require.NoError(t, err)
		assert.Equal(t, [][]byte{{byte(i)}}, item.Value)
	}
}

func TestDB_Logging(t *testing.T) {
	var buf bytes.Buffer
	logger := hyperdex.NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	db := newDB(t, hyperdex.WithLogger(logger))

	require.NoError(t, db.Put(context.Background(), []byte("k"), nil, 1))
	assert.Contains(t, buf.String(), `"msg":"put completed"`)
	assert.Contains(t, buf.String(), `"msg":"shard created"`)
}
