package archive

import (
	"log/slog"

	"github.com/agiz/HyperDex/resource"
)

type options struct {
	codec      Codec
	blockSize  int
	controller *resource.Controller
	logger     *slog.Logger
}

// Option configures export and import.
type Option func(*options)

func applyOptions(optFns []Option) options {
	o := options{
		codec:     CodecZstd,
		blockSize: DefaultBlockSize,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, fn := range optFns {
		fn(&o)
	}
	return o
}

// WithCodec sets the frame compression. The default is CodecZstd.
func WithCodec(c Codec) Option {
	return func(o *options) { o.codec = c }
}

// WithBlockSize sets the raw size at which frames are flushed.
func WithBlockSize(n int) Option {
	return func(o *options) {
		if n > 0 && n <= maxFrameSize {
			o.blockSize = n
		}
	}
}

// WithController throttles archive IO through rc's IO limit.
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
