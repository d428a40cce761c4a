package observability

import (
	"time"

	"github.com/agiz/HyperDex/shard"
)

type tee []shard.MetricsObserver

// Tee returns an observer forwarding every event to each of observers.
func Tee(observers ...shard.MetricsObserver) shard.MetricsObserver {
	out := make(tee, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

func (t tee) OnOperation(op shard.Op, code shard.ReturnCode) {
	for _, o := range t {
		o.OnOperation(op, code)
	}
}

func (t tee) OnSync(wait bool, d time.Duration, err error) {
	for _, o := range t {
		o.OnSync(wait, d, err)
	}
}

func (t tee) OnCopy(d time.Duration, copied int, err error) {
	for _, o := range t {
		o.OnCopy(d, copied, err)
	}
}
