// Package testutil provides testing utilities for HyperDex.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded, thread-safe RNG and generators for keys, values and
// mixed workloads.
//
// # Keys and Values
//
//	rng := testutil.NewRNG(seed)
//	keys := testutil.Keys("user", 1000)  // user-00000000 ... sortable
//	key := rng.Key(16)                   // random printable key
//	value := rng.Value(3, 64)            // up to 3 buffers of up to 64 bytes
//
// # Workloads
//
//	ops := rng.Workload(10000, keys, testutil.Mix{Get: 0.5, Put: 0.4, Del: 0.1}, 1.1)
package testutil
