package hyperdex

import (
	"sync/atomic"
	"time"

	"github.com/agiz/HyperDex/shard"
)

// BasicMetricsObserver provides simple in-memory metrics collection.
// Useful for debugging and benchmarks without a Prometheus registry.
type BasicMetricsObserver struct {
	GetCount       atomic.Int64
	GetMisses      atomic.Int64
	PutCount       atomic.Int64
	PutRejected    atomic.Int64
	DelCount       atomic.Int64
	DelMisses      atomic.Int64
	Errors         atomic.Int64
	SyncCount      atomic.Int64
	SyncErrors     atomic.Int64
	SyncTotalNanos atomic.Int64
	CopyCount      atomic.Int64
	CopiedRecords  atomic.Int64
}

var _ shard.MetricsObserver = (*BasicMetricsObserver)(nil)

// OnOperation implements shard.MetricsObserver.
func (b *BasicMetricsObserver) OnOperation(op shard.Op, code shard.ReturnCode) {
	switch op {
	case shard.OpGet:
		b.GetCount.Add(1)
	case shard.OpPut:
		b.PutCount.Add(1)
	case shard.OpDel:
		b.DelCount.Add(1)
	}

	switch code {
	case shard.Success:
	case shard.NotFound:
		if op == shard.OpDel {
			b.DelMisses.Add(1)
		} else {
			b.GetMisses.Add(1)
		}
	case shard.DataFull, shard.HashFull, shard.SearchFull:
		b.PutRejected.Add(1)
	default:
		b.Errors.Add(1)
	}
}

// OnSync implements shard.MetricsObserver.
func (b *BasicMetricsObserver) OnSync(_ bool, duration time.Duration, err error) {
	b.SyncCount.Add(1)
	b.SyncTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SyncErrors.Add(1)
	}
}

// OnCopy implements shard.MetricsObserver.
func (b *BasicMetricsObserver) OnCopy(_ time.Duration, copied int, err error) {
	b.CopyCount.Add(1)
	b.CopiedRecords.Add(int64(copied))
	if err != nil {
		b.Errors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsObserver) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		GetCount:      b.GetCount.Load(),
		GetMisses:     b.GetMisses.Load(),
		PutCount:      b.PutCount.Load(),
		PutRejected:   b.PutRejected.Load(),
		DelCount:      b.DelCount.Load(),
		DelMisses:     b.DelMisses.Load(),
		Errors:        b.Errors.Load(),
		SyncCount:     b.SyncCount.Load(),
		SyncErrors:    b.SyncErrors.Load(),
		SyncAvgNanos:  b.getAvgSyncNanos(),
		CopyCount:     b.CopyCount.Load(),
		CopiedRecords: b.CopiedRecords.Load(),
	}
}

func (b *BasicMetricsObserver) getAvgSyncNanos() int64 {
	count := b.SyncCount.Load()
	if count == 0 {
		return 0
	}
	return b.SyncTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsObserver state.
type BasicMetricsStats struct {
	GetCount      int64
	GetMisses     int64
	PutCount      int64
	PutRejected   int64
	DelCount      int64
	DelMisses     int64
	Errors        int64
	SyncCount     int64
	SyncErrors    int64
	SyncAvgNanos  int64
	CopyCount     int64
	CopiedRecords int64
}
