package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/agiz/HyperDex/blobstore"
	"github.com/agiz/HyperDex/resource"
	"github.com/agiz/HyperDex/shard"
)

// checkEvery is how many records pass between context checks.
const checkEvery = 1024

// Putter receives imported records. *shard.Shard (under the caller's write
// lock) and *shard.Guarded satisfy it.
type Putter interface {
	Put(primary, secondary uint32, key []byte, value [][]byte, version uint64) error
}

// Export writes every record visible in snap to w.
func Export(ctx context.Context, snap *shard.Snapshot, w io.Writer, optFns ...Option) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	o := applyOptions(optFns)
	if o.controller != nil {
		w = resource.NewRateLimitedWriter(ctx, w, o.controller)
	}
	start := time.Now()

	aw, err := NewWriter(w, snap.Geometry(), optFns...)
	if err != nil {
		return Stats{}, err
	}

	it := snap.Iterator()
	for it.Next() {
		if err := aw.Add(it.Record()); err != nil {
			return aw.Stats(), err
		}
		if aw.records%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return aw.Stats(), err
			}
		}
	}
	if err := it.Err(); err != nil {
		return aw.Stats(), err
	}
	if err := aw.Close(); err != nil {
		return aw.Stats(), err
	}

	st := aw.Stats()
	o.logger.Info("archive exported",
		"id", st.ID,
		"codec", aw.header.Codec,
		"records", st.Records,
		"bytes", st.Bytes,
		"duration", time.Since(start),
	)
	return st, nil
}

// Import replays every record of the archive in r into dst and returns the
// header and the number of records imported. Records keep their versions.
func Import(ctx context.Context, r io.Reader, dst Putter, optFns ...Option) (Header, uint64, error) {
	o := applyOptions(optFns)
	if o.controller != nil {
		r = resource.NewRateLimitedReader(ctx, r, o.controller)
	}

	ar, err := NewReader(r)
	if err != nil {
		return Header{}, 0, err
	}
	n, err := replay(ctx, ar, dst)
	if err == nil {
		o.logger.Info("archive imported", "id", ar.header.ID, "records", n)
	}
	return ar.header, n, err
}

func replay(ctx context.Context, ar *Reader, dst Putter) (uint64, error) {
	var n uint64
	for ar.Next() {
		rec := ar.Record()
		if err := dst.Put(rec.Primary, rec.Secondary, rec.Key, rec.Value, rec.Version); err != nil {
			return n, fmt.Errorf("archive: import record %d: %w", n, err)
		}
		n++
		if n%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return n, err
			}
		}
	}
	return n, ar.Err()
}

// Restore creates a shard named name in dir with the geometry recorded in
// the archive and fills it. shardOpts are applied after the archived
// geometry, so they may override it.
func Restore(ctx context.Context, r io.Reader, dir, name string, shardOpts ...shard.Option) (*shard.Shard, error) {
	ar, err := NewReader(r)
	if err != nil {
		return nil, err
	}

	opts := append([]shard.Option{shard.WithGeometry(ar.header.Geometry)}, shardOpts...)
	s, err := shard.Create(dir, name, opts...)
	if err != nil {
		return nil, err
	}
	if _, err := replay(ctx, ar, s); err != nil {
		return nil, errors.Join(err, s.Close())
	}
	return s, nil
}

// Upload exports snap into a new blob. The blob is published only if the
// export completes.
func Upload(ctx context.Context, snap *shard.Snapshot, store blobstore.BlobStore, name string, optFns ...Option) (Stats, error) {
	w, err := store.Create(ctx, name)
	if err != nil {
		return Stats{}, err
	}

	st, err := Export(ctx, snap, w, optFns...)
	if err != nil {
		return st, errors.Join(err, w.Abort())
	}
	if err := w.Close(); err != nil {
		return st, fmt.Errorf("archive: publish %s: %w", name, err)
	}
	return st, nil
}

// Download imports the archive stored under name into dst.
func Download(ctx context.Context, store blobstore.BlobStore, name string, dst Putter, optFns ...Option) (Header, uint64, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return Header{}, 0, err
	}
	defer blob.Close()

	r, err := blobstore.NewReader(ctx, blob)
	if err != nil {
		return Header{}, 0, err
	}
	defer r.Close()

	return Import(ctx, r, dst, optFns...)
}
