package hyperdex

import (
	"context"
	"iter"
	"sync/atomic"

	"github.com/agiz/HyperDex/internal/hash"
	"github.com/agiz/HyperDex/shard"
)

// Item is a stored key with its value and version.
type Item struct {
	Key     []byte
	Value   [][]byte
	Version uint64
}

// DB is a shard addressed by key. It is safe for concurrent use.
type DB struct {
	shard  *shard.Guarded
	hasher Hasher
	logger *Logger
	closed atomic.Bool
}

// Create creates a new shard file named name in dir and returns a DB for it.
// An existing file is overwritten.
func Create(dir, name string, optFns ...Option) (*DB, error) {
	o := options{
		logger:  NoopLogger(),
		metrics: shard.NoopMetricsObserver{},
		hasher:  hash.Key,
	}
	for _, fn := range optFns {
		fn(&o)
	}

	shardOpts := append([]shard.Option{
		shard.WithLogger(o.logger.Logger),
		shard.WithMetricsObserver(o.metrics),
	}, o.shardOptions...)

	s, err := shard.Create(dir, name, shardOpts...)
	if err != nil {
		o.logger.Error("create shard failed", "dir", dir, "name", name, "error", err)
		return nil, err
	}

	return &DB{
		shard:  shard.NewGuarded(s),
		hasher: o.hasher,
		logger: o.logger.WithShard(s.Path()),
	}, nil
}

// Path returns the shard file path.
func (db *DB) Path() string { return db.shard.Unwrap().Path() }

// Geometry returns the capacities the shard was created with.
func (db *DB) Geometry() shard.Geometry { return db.shard.Unwrap().Geometry() }

// Shard exposes the underlying guarded shard for copies, archives and
// compaction.
func (db *DB) Shard() *shard.Guarded { return db.shard }

// Get returns the current value of key.
func (db *DB) Get(ctx context.Context, key []byte) (Item, error) {
	if err := db.check(ctx, key); err != nil {
		return Item{}, err
	}

	primary, _ := db.hasher(key)
	value, version, err := db.shard.Get(primary, key)
	if err != nil {
		return Item{}, err
	}
	return Item{Key: key, Value: value, Version: version}, nil
}

// Put stores value under key with the given version. Versions are not
// checked; callers keep them increasing per key.
func (db *DB) Put(ctx context.Context, key []byte, value [][]byte, version uint64) error {
	if err := db.check(ctx, key); err != nil {
		return err
	}

	primary, secondary := db.hasher(key)
	err := db.shard.Put(primary, secondary, key, value, version)
	db.logger.LogPut(ctx, key, version, err)
	return err
}

// Delete removes key. It returns ErrNotFound if key is not stored.
func (db *DB) Delete(ctx context.Context, key []byte) error {
	if err := db.check(ctx, key); err != nil {
		return err
	}

	primary, _ := db.hasher(key)
	err := db.shard.Del(primary, key)
	db.logger.LogDelete(ctx, key, err)
	return err
}

// Scan returns every item live at the time of the call, in write order.
// Writes made while scanning are not visited. The scan holds a reference on
// the shard until iteration ends.
func (db *DB) Scan(ctx context.Context) iter.Seq2[Item, error] {
	return func(yield func(Item, error) bool) {
		if db.closed.Load() {
			yield(Item{}, ErrClosed)
			return
		}
		snap, err := db.shard.Snapshot()
		if err != nil {
			yield(Item{}, err)
			return
		}
		defer snap.Close()

		it := snap.Iterator()
		for it.Next() {
			if err := ctx.Err(); err != nil {
				yield(Item{}, err)
				return
			}
			rec := it.Record()
			if !yield(Item{Key: rec.Key, Value: rec.Value, Version: rec.Version}, nil) {
				return
			}
		}
		if err := it.Err(); err != nil {
			yield(Item{}, err)
		}
	}
}

// Sync flushes all writes to stable storage and waits for completion.
func (db *DB) Sync(ctx context.Context) error {
	if db.closed.Load() {
		return ErrClosed
	}
	err := db.shard.Sync()
	db.logger.LogSync(ctx, true, err)
	return err
}

// Async schedules a flush of all writes without waiting.
func (db *DB) Async(ctx context.Context) error {
	if db.closed.Load() {
		return ErrClosed
	}
	err := db.shard.Async()
	db.logger.LogSync(ctx, false, err)
	return err
}

// UsedSpace returns the percentage of append capacity consumed.
func (db *DB) UsedSpace() int { return db.shard.UsedSpace() }

// StaleSpace returns the percentage of append capacity held by superseded
// records, deleted records and tombstones.
func (db *DB) StaleSpace() int { return db.shard.StaleSpace() }

// Stats returns the raw space counters.
func (db *DB) Stats() shard.Stats { return db.shard.Stats() }

// Close releases the DB's reference on the shard. Open scans keep the mapping
// alive until they finish. Close is idempotent.
func (db *DB) Close() error {
	if !db.closed.CompareAndSwap(false, true) {
		return nil
	}
	db.logger.Debug("closing shard")
	return db.shard.Close()
}

func (db *DB) check(ctx context.Context, key []byte) error {
	if db.closed.Load() {
		return ErrClosed
	}
	if len(key) == 0 {
		return ErrEmptyKey
	}
	return ctx.Err()
}
