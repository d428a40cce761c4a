package hyperdex

import (
	"github.com/agiz/HyperDex/shard"
)

// Hasher derives the primary and secondary hash of a key.
type Hasher func(key []byte) (primary, secondary uint32)

type options struct {
	logger       *Logger
	metrics      shard.MetricsObserver
	hasher       Hasher
	shardOptions []shard.Option
}

// Option configures Create.
type Option func(*options)

// WithLogger sets the logger. If nil, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsObserver sets the observer notified of every shard operation.
func WithMetricsObserver(observer shard.MetricsObserver) Option {
	return func(o *options) {
		if observer != nil {
			o.metrics = observer
		}
	}
}

// WithGeometry sets the capacities of the shard.
func WithGeometry(g shard.Geometry) Option {
	return WithShardOptions(shard.WithGeometry(g))
}

// WithHasher replaces the murmur3 key hasher. Archives and copies keep the
// stored hashes, so every process opening the same data must agree on it.
func WithHasher(h Hasher) Option {
	return func(o *options) {
		if h != nil {
			o.hasher = h
		}
	}
}

// WithShardOptions passes options through to shard.Create. They are applied
// after the ones derived from this package's options.
func WithShardOptions(optFns ...shard.Option) Option {
	return func(o *options) {
		o.shardOptions = append(o.shardOptions, optFns...)
	}
}
