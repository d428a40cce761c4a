// Package observability exports shard metrics to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	obs := observability.NewPrometheusObserver(reg, "hyperdex")
//	s, err := shard.Create(dir, "0001.shard", shard.WithMetricsObserver(obs))
//	reg.MustRegister(observability.NewSpaceCollector("hyperdex", map[string]observability.SpaceReporter{"0001": s}))
//
// The registry can then be served with promhttp.HandlerFor.
package observability
