package reshard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/agiz/HyperDex/internal/fs"
	"github.com/agiz/HyperDex/resource"
	"github.com/agiz/HyperDex/shard"
)

// ErrCannotSplit is returned when a hash coordinate has no free bit left.
var ErrCannotSplit = errors.New("reshard: coordinate cannot be split further")

// Part describes one shard built by Split.
type Part struct {
	// Name is the file name of the new shard inside the compactor's directory.
	Name string
	// Coordinate selects the records copied into the part. Nil copies all.
	Coordinate shard.Coordinate
	// Geometry of the new shard. The zero value uses the source geometry.
	Geometry shard.Geometry
}

// Compactor builds new shards from live records of existing ones. It is safe
// for concurrent use.
type Compactor struct {
	dir        string
	fs         fs.FileSystem
	controller *resource.Controller
	logger     *slog.Logger
	shardOpts  []shard.Option
}

// NewCompactor returns a compactor creating shards in dir.
func NewCompactor(dir string, optFns ...Option) *Compactor {
	o := options{
		fs:     fs.Default,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, fn := range optFns {
		fn(&o)
	}
	return &Compactor{
		dir:        dir,
		fs:         o.fs,
		controller: o.controller,
		logger:     o.logger,
		shardOpts:  o.shardOpts,
	}
}

// Clean copies the live records of src into a new shard with the same
// geometry, named name. The new shard has no stale space. src is not
// modified or closed; if name is src's file name, src keeps serving from the
// unlinked file until it is closed.
func (c *Compactor) Clean(ctx context.Context, src *shard.Guarded, name string) (*shard.Guarded, error) {
	out, err := c.Split(ctx, src, []Part{{Name: name}})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// SplitHash splits src in two along the lowest primary hash bit coord does
// not fix. coord is the coordinate src is responsible for; the zero value
// stands for the whole hash space.
func (c *Compactor) SplitHash(ctx context.Context, src *shard.Guarded, coord shard.HashCoordinate, loName, hiName string) (lo, hi *shard.Guarded, err error) {
	loCoord, hiCoord, ok := coord.Split()
	if !ok {
		return nil, nil, ErrCannotSplit
	}
	out, err := c.Split(ctx, src, []Part{
		{Name: loName, Coordinate: loCoord},
		{Name: hiName, Coordinate: hiCoord},
	})
	if err != nil {
		return nil, nil, err
	}
	return out[0], out[1], nil
}

// Split builds one new shard per part in parallel and returns them in the
// order of parts. Writers on src are blocked while records are copied.
//
// Either every part is published under its name, or none is and every
// temporary file is removed. The only exception is a failing rename during
// publication, which leaves the parts renamed before it in place.
func (c *Compactor) Split(ctx context.Context, src *shard.Guarded, parts []Part) (out []*shard.Guarded, err error) {
	if src == nil || len(parts) == 0 {
		return nil, fmt.Errorf("%w: split needs a source and at least one part", shard.ErrInvalidArgument)
	}
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		if p.Name == "" || filepath.Base(p.Name) != p.Name {
			return nil, fmt.Errorf("%w: part name %q", shard.ErrInvalidArgument, p.Name)
		}
		if _, dup := seen[p.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate part name %q", shard.ErrInvalidArgument, p.Name)
		}
		seen[p.Name] = struct{}{}
	}

	start := time.Now()
	srcPath := src.Unwrap().Path()
	defer func() {
		if err != nil {
			c.logger.Error("reshard failed", "source", srcPath, "parts", len(parts), "error", err)
		}
	}()

	built := make([]*shard.Guarded, len(parts))
	counts := make([]int, len(parts))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range parts {
		g.Go(func() error {
			dst, n, err := c.build(gctx, src, p)
			if err != nil {
				return fmt.Errorf("reshard: build %s: %w", p.Name, err)
			}
			built[i], counts[i] = dst, n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.discard(built)
		return nil, err
	}

	for i, dst := range built {
		if err := dst.Rename(parts[i].Name); err != nil {
			c.discard(built[i:])
			for _, done := range built[:i] {
				_ = done.Close()
			}
			return nil, fmt.Errorf("reshard: publish %s: %w", parts[i].Name, err)
		}
	}

	for i, dst := range built {
		c.logger.Info("shard rebuilt",
			"source", srcPath,
			"shard", dst.Unwrap().Path(),
			"records", counts[i],
			"stale_pct", dst.StaleSpace(),
			"used_pct", dst.UsedSpace(),
		)
	}
	c.logger.Debug("reshard completed", "source", srcPath, "parts", len(parts), "duration", time.Since(start))
	return built, nil
}

func (c *Compactor) build(ctx context.Context, src *shard.Guarded, p Part) (*shard.Guarded, int, error) {
	if err := c.controller.AcquireWorker(ctx); err != nil {
		return nil, 0, err
	}
	defer c.controller.ReleaseWorker()

	geometry := p.Geometry
	if geometry == (shard.Geometry{}) {
		geometry = src.Unwrap().Geometry()
	}
	size := geometry.FileSize()
	if err := c.controller.AcquireMapped(size); err != nil {
		return nil, 0, err
	}
	defer c.controller.ReleaseMapped(size)

	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	tmp := fmt.Sprintf(".%s.%s.tmp", p.Name, uuid.NewString())
	opts := append([]shard.Option{shard.WithFileSystem(c.fs), shard.WithLogger(c.logger)}, c.shardOpts...)
	opts = append(opts, shard.WithGeometry(geometry))
	s, err := shard.Create(c.dir, tmp, opts...)
	if err != nil {
		return nil, 0, err
	}
	dst := shard.NewGuarded(s)

	coord := p.Coordinate
	if coord == nil {
		coord = shard.MatchAll
	}
	n, err := src.CopyTo(coord, dst)
	if err == nil {
		err = dst.Sync()
	}
	if err != nil {
		c.discard([]*shard.Guarded{dst})
		return nil, 0, err
	}
	return dst, n, nil
}

// discard closes and removes shards that were not published.
func (c *Compactor) discard(shards []*shard.Guarded) {
	for _, dst := range shards {
		if dst == nil {
			continue
		}
		path := dst.Unwrap().Path()
		if err := dst.Close(); err != nil {
			c.logger.Warn("close discarded shard failed", "shard", path, "error", err)
		}
		if err := c.fs.Remove(path); err != nil {
			c.logger.Warn("remove discarded shard failed", "shard", path, "error", err)
		}
	}
}
