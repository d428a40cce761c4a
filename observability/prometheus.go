package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/agiz/HyperDex/shard"
)

// PrometheusObserver implements shard.MetricsObserver.
type PrometheusObserver struct {
	operations  *prometheus.CounterVec
	syncLatency *prometheus.HistogramVec
	copyLatency *prometheus.HistogramVec
	copied      prometheus.Counter
}

var _ shard.MetricsObserver = (*PrometheusObserver)(nil)

// NewPrometheusObserver creates the shard metrics under namespace and
// registers them with reg. A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheusObserver(reg prometheus.Registerer, namespace string) *PrometheusObserver {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	o := &PrometheusObserver{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shard_operations_total",
			Help:      "Shard get, put and del calls by return code.",
		}, []string{"op", "code"}),
		syncLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "shard_sync_duration_seconds",
			Help:      "Latency of shard flushes.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"mode", "status"}),
		copyLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "shard_copy_duration_seconds",
			Help:      "Latency of shard copies.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		copied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shard_copied_records_total",
			Help:      "Records written by shard copies.",
		}),
	}

	reg.MustRegister(o.operations, o.syncLatency, o.copyLatency, o.copied)
	return o
}

// OnOperation implements shard.MetricsObserver.
func (o *PrometheusObserver) OnOperation(op shard.Op, code shard.ReturnCode) {
	o.operations.WithLabelValues(string(op), code.String()).Inc()
}

// OnSync implements shard.MetricsObserver.
func (o *PrometheusObserver) OnSync(wait bool, d time.Duration, err error) {
	mode := "async"
	if wait {
		mode = "sync"
	}
	o.syncLatency.WithLabelValues(mode, status(err)).Observe(d.Seconds())
}

// OnCopy implements shard.MetricsObserver.
func (o *PrometheusObserver) OnCopy(d time.Duration, copied int, err error) {
	o.copyLatency.WithLabelValues(status(err)).Observe(d.Seconds())
	o.copied.Add(float64(copied))
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
