package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// SpaceReporter is the part of a shard the space collector reads.
// *shard.Shard and *shard.Guarded satisfy it.
type SpaceReporter interface {
	UsedSpace() int
	StaleSpace() int
}

// SpaceCollector reports used and stale space of a set of shards on every
// scrape.
type SpaceCollector struct {
	used  *prometheus.Desc
	stale *prometheus.Desc

	mu     sync.RWMutex
	shards map[string]SpaceReporter
}

var _ prometheus.Collector = (*SpaceCollector)(nil)

// NewSpaceCollector creates a collector for shards, keyed by the value of
// the "shard" label.
func NewSpaceCollector(namespace string, shards map[string]SpaceReporter) *SpaceCollector {
	c := &SpaceCollector{
		used: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "shard", "used_space_percent"),
			"Percentage of append capacity consumed.",
			[]string{"shard"}, nil,
		),
		stale: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "shard", "stale_space_percent"),
			"Percentage of append capacity held by superseded entries.",
			[]string{"shard"}, nil,
		),
		shards: make(map[string]SpaceReporter, len(shards)),
	}
	for name, s := range shards {
		c.shards[name] = s
	}
	return c
}

// Set adds or replaces a shard.
func (c *SpaceCollector) Set(name string, s SpaceReporter) {
	c.mu.Lock()
	c.shards[name] = s
	c.mu.Unlock()
}

// Remove stops reporting a shard.
func (c *SpaceCollector) Remove(name string) {
	c.mu.Lock()
	delete(c.shards, name)
	c.mu.Unlock()
}

// Describe implements prometheus.Collector.
func (c *SpaceCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.used
	ch <- c.stale
}

// Collect implements prometheus.Collector.
func (c *SpaceCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for name, s := range c.shards {
		ch <- prometheus.MustNewConstMetric(c.used, prometheus.GaugeValue, float64(s.UsedSpace()), name)
		ch <- prometheus.MustNewConstMetric(c.stale, prometheus.GaugeValue, float64(s.StaleSpace()), name)
	}
}
