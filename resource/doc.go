// Package resource bounds the background work done around shards.
//
// A Controller governs three resources:
//
//   - Mapped bytes: the total size of shard files the compactor may have
//     created but not yet handed over (fail-fast, never blocks)
//   - Workers: the number of concurrent copies (blocking semaphore)
//   - IO: archive upload and download throughput (token bucket)
//
// # Mapped bytes
//
//	rc := resource.NewController(resource.Config{
//	    MappedBytesLimit: 8 << 30,
//	})
//	if err := rc.AcquireMapped(geometry.FileSize()); err != nil {
//	    // ErrMappedLimitExceeded: too many shards in flight
//	}
//	defer rc.ReleaseMapped(geometry.FileSize())
//
// # Workers
//
//	if err := rc.AcquireWorker(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseWorker()
//
// # IO
//
//	w := resource.NewRateLimitedWriter(ctx, blobWriter, rc)
//	r := resource.NewRateLimitedReader(ctx, blobReader, rc)
//
// A nil *Controller imposes no limits, so callers can make limiting
// optional without nil checks.
package resource
