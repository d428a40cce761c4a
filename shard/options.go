package shard

import (
	"log/slog"
	"os"

	"github.com/agiz/HyperDex/internal/fs"
)

type options struct {
	geometry Geometry
	fs       fs.FileSystem
	fileMode os.FileMode
	logger   *slog.Logger
	metrics  MetricsObserver
}

func defaultOptions() options {
	return options{
		geometry: DefaultGeometry(),
		fs:       fs.Default,
		fileMode: 0o644,
		logger:   slog.New(slog.DiscardHandler),
		metrics:  NoopMetricsObserver{},
	}
}

// Option configures shard creation.
type Option func(*options)

// WithGeometry sets the capacities of the three regions.
func WithGeometry(g Geometry) Option {
	return func(o *options) {
		o.geometry = g
	}
}

// WithFileSystem sets the file system the shard file is created on.
// This is primarily used for testing and fault injection.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		if fsys != nil {
			o.fs = fsys
		}
	}
}

// WithFileMode sets the permission bits of a newly created shard file.
func WithFileMode(mode os.FileMode) Option {
	return func(o *options) {
		o.fileMode = mode
	}
}

// WithLogger sets the logger for the shard.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetricsObserver sets the metrics observer for the shard.
func WithMetricsObserver(observer MetricsObserver) Option {
	return func(o *options) {
		if observer != nil {
			o.metrics = observer
		}
	}
}

// WithHashTableEntries overrides the number of hash table slots.
func WithHashTableEntries(n uint32) Option {
	return func(o *options) {
		o.geometry.HashTableEntries = n
	}
}

// WithSearchIndexEntries overrides the number of search index entries.
func WithSearchIndexEntries(n uint32) Option {
	return func(o *options) {
		o.geometry.SearchIndexEntries = n
	}
}

// WithDataSize overrides the size of the data log in bytes.
func WithDataSize(n uint32) Option {
	return func(o *options) {
		o.geometry.DataSize = n
	}
}
