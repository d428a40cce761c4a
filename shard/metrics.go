package shard

import "time"

// Op names a shard operation for metrics.
type Op string

const (
	OpGet Op = "get"
	OpPut Op = "put"
	OpDel Op = "del"
)

// MetricsObserver receives operational events from a shard.
// Implementations must be safe for concurrent use and cheap: OnOperation is
// called on the hot path, under the caller's lock.
type MetricsObserver interface {
	// OnOperation is called after every get, put and del with its outcome.
	OnOperation(op Op, code ReturnCode)

	// OnSync is called after Sync (wait=true) or Async (wait=false).
	OnSync(wait bool, duration time.Duration, err error)

	// OnCopy is called when CopyTo completes.
	OnCopy(duration time.Duration, copied int, err error)
}

// NoopMetricsObserver is a no-op implementation of MetricsObserver.
type NoopMetricsObserver struct{}

func (NoopMetricsObserver) OnOperation(Op, ReturnCode)        {}
func (NoopMetricsObserver) OnSync(bool, time.Duration, error) {}
func (NoopMetricsObserver) OnCopy(time.Duration, int, error)  {}
