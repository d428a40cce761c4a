package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/agiz/HyperDex/archive"
	"github.com/agiz/HyperDex/shard"
)

func runRestore(ctx context.Context, args []string, _ io.Reader, stdout io.Writer) error {
	fs, cfgPath := newFlagSet("restore")
	name := fs.String("archive", "", "archive name in the store (default <shard>.hdx)")
	out := fs.String("out", "", "shard file name in dir (default the configured shard)")
	keepGeometry := fs.Bool("archived-geometry", true, "use the geometry recorded in the archive instead of the configured one")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := LoadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if *name == "" {
		*name = cfg.Shard + ".hdx"
	}
	if *out == "" {
		*out = cfg.Shard
	}
	logger := cfg.Logger()

	r, err := openArchive(ctx, cfg, *name)
	if err != nil {
		return err
	}
	defer r.Close()

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return err
	}
	opts := []shard.Option{shard.WithLogger(logger.Logger)}
	if !*keepGeometry {
		opts = append(opts, shard.WithGeometry(cfg.Geometry))
	}
	s, err := archive.Restore(ctx, r, cfg.Dir, *out, opts...)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Sync(); err != nil {
		return err
	}
	printSpace(stdout, s.Path(), s.Stats(), s.UsedSpace(), s.StaleSpace())
	fmt.Fprintf(stdout, "restored from %s\n", *name)
	return nil
}
