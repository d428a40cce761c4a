package reshard

import (
	"log/slog"

	"github.com/agiz/HyperDex/internal/fs"
	"github.com/agiz/HyperDex/resource"
	"github.com/agiz/HyperDex/shard"
)

type options struct {
	fs         fs.FileSystem
	controller *resource.Controller
	logger     *slog.Logger
	shardOpts  []shard.Option
}

// Option configures a Compactor.
type Option func(*options)

// WithFileSystem sets the file system new shards are created in.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		if fsys != nil {
			o.fs = fsys
		}
	}
}

// WithController bounds concurrent copies by the controller's worker limit
// and the size of shard files under construction by its mapped bytes limit.
func WithController(rc *resource.Controller) Option {
	return func(o *options) { o.controller = rc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithShardOptions adds options passed to every shard.Create.
func WithShardOptions(optFns ...shard.Option) Option {
	return func(o *options) { o.shardOpts = append(o.shardOpts, optFns...) }
}
