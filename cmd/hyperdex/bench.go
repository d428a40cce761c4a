package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agiz/HyperDex"
	"github.com/agiz/HyperDex/observability"
	"github.com/agiz/HyperDex/reshard"
	"github.com/agiz/HyperDex/resource"
	"github.com/agiz/HyperDex/shard"
	"github.com/agiz/HyperDex/testutil"
)

func runBench(ctx context.Context, args []string, _ io.Reader, stdout io.Writer) error {
	fs, cfgPath := newFlagSet("bench")
	ops := fs.Int("ops", 0, "number of operations (overrides bench.ops)")
	compact := fs.Bool("compact", true, "clean or split the shard afterwards if the policy asks for it")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := LoadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if *ops > 0 {
		cfg.Bench.Ops = *ops
	}
	logger := cfg.Logger()

	basic := &hyperdex.BasicMetricsObserver{}
	var observer shard.MetricsObserver = basic
	var space *observability.SpaceCollector
	if cfg.Metrics.Listen != "" {
		reg := prometheus.NewRegistry()
		observer = observability.Tee(basic, observability.NewPrometheusObserver(reg, "hyperdex"))
		space = observability.NewSpaceCollector("hyperdex", nil)
		reg.MustRegister(space)

		srv := &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "addr", cfg.Metrics.Listen, "error", err)
			}
		}()
		defer srv.Close()
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return err
	}
	db, err := hyperdex.Create(cfg.Dir, cfg.Shard,
		hyperdex.WithGeometry(cfg.Geometry),
		hyperdex.WithLogger(logger),
		hyperdex.WithMetricsObserver(observer),
	)
	if err != nil {
		return err
	}
	defer db.Close()
	if space != nil {
		space.Set(cfg.Shard, db.Shard())
	}

	rng := testutil.NewRNG(cfg.Bench.Seed)
	workload := rng.Workload(cfg.Bench.Ops, testutil.Keys("key", cfg.Bench.Keys), cfg.Bench.Mix, cfg.Bench.Skew)

	start := time.Now()
	var version uint64
	for i, op := range workload {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		switch op.Kind {
		case testutil.OpGet:
			_, err = db.Get(ctx, op.Key)
		case testutil.OpPut:
			version++
			err = db.Put(ctx, op.Key, op.Value, version)
		case testutil.OpDel:
			err = db.Delete(ctx, op.Key)
		}
		if err != nil && !errors.Is(err, hyperdex.ErrNotFound) && !hyperdex.IsCapacity(err) {
			return fmt.Errorf("%s %s: %w", op.Kind, op.Key, err)
		}
	}
	elapsed := time.Since(start)

	if err := db.Sync(ctx); err != nil {
		return err
	}

	st := basic.GetStats()
	fmt.Fprintf(stdout, "ops        %d in %s (%.0f ops/s)\n", len(workload), elapsed.Round(time.Millisecond), float64(len(workload))/elapsed.Seconds())
	fmt.Fprintf(stdout, "get        %d (%d missing)\n", st.GetCount, st.GetMisses)
	fmt.Fprintf(stdout, "put        %d (%d rejected)\n", st.PutCount, st.PutRejected)
	fmt.Fprintf(stdout, "del        %d (%d missing)\n", st.DelCount, st.DelMisses)
	printSpace(stdout, db.Path(), db.Stats(), db.UsedSpace(), db.StaleSpace())

	action := cfg.Policy.Decide(db.UsedSpace(), db.StaleSpace())
	fmt.Fprintf(stdout, "policy     %s\n", action)
	if !*compact || action == reshard.ActionNone {
		return nil
	}

	rc := resource.NewController(cfg.Resources)
	c := reshard.NewCompactor(cfg.Dir, reshard.WithController(rc), reshard.WithLogger(logger.Logger))
	var rebuilt []*shard.Guarded
	switch action {
	case reshard.ActionClean:
		dst, err := c.Clean(ctx, db.Shard(), cfg.Shard)
		if err != nil {
			return err
		}
		rebuilt = append(rebuilt, dst)
	case reshard.ActionSplit:
		base := strings.TrimSuffix(cfg.Shard, ".shard")
		lo, hi, err := c.SplitHash(ctx, db.Shard(), shard.HashCoordinate{}, base+"-0.shard", base+"-1.shard")
		if err != nil {
			return err
		}
		rebuilt = append(rebuilt, lo, hi)
	}
	for _, s := range rebuilt {
		printSpace(stdout, s.Unwrap().Path(), s.Stats(), s.UsedSpace(), s.StaleSpace())
		if err := s.Close(); err != nil {
			return err
		}
	}
	return nil
}

func printSpace(w io.Writer, path string, st shard.Stats, used, stale int) {
	fmt.Fprintf(w, "shard      %s\n", path)
	fmt.Fprintf(w, "  keys     %d live, %d dead slots\n", st.LiveKeys, st.DeadSlots)
	fmt.Fprintf(w, "  used     %d%% (%d bytes)\n", used, st.UsedBytes())
	fmt.Fprintf(w, "  stale    %d%% (%d bytes)\n", stale, st.StaleBytes())
}
