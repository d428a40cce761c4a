package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/agiz/HyperDex"
	"github.com/agiz/HyperDex/archive"
	"github.com/agiz/HyperDex/codec"
	"github.com/agiz/HyperDex/resource"
)

func runLoad(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs, cfgPath := newFlagSet("load")
	input := fs.String("input", "-", "file with one key=value per line, - for stdin")
	name := fs.String("archive", "", "archive name in the store (default <shard>.hdx)")
	sep := fs.String("sep", "=", "separator between key and value")
	split := fs.String("split", "", "if set, split values into buffers at this separator")
	format := fs.String("format", "text", "input format: text for key=value lines, or json/go-json for dump -format output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := LoadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if *sep == "" {
		return fmt.Errorf("%w: -sep must not be empty", errUsage)
	}
	var dec codec.Codec
	if *format != "text" {
		var ok bool
		if dec, ok = codec.ByName(*format); !ok {
			return fmt.Errorf("%w: unknown format %q", errUsage, *format)
		}
	}
	if *name == "" {
		*name = cfg.Shard + ".hdx"
	}
	logger := cfg.Logger()

	var r io.Reader = stdin
	if *input != "-" {
		f, err := os.Open(*input)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return err
	}
	db, err := hyperdex.Create(cfg.Dir, cfg.Shard, hyperdex.WithGeometry(cfg.Geometry), hyperdex.WithLogger(logger))
	if err != nil {
		return err
	}
	defer db.Close()

	var loaded int
	if dec != nil {
		loaded, err = loadRecords(ctx, db, r, dec)
	} else {
		loaded, err = loadLines(ctx, db, r, []byte(*sep), []byte(*split))
	}
	if err != nil {
		return err
	}
	if err := db.Sync(ctx); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "loaded %d lines into %s (used %d%%, stale %d%%)\n", loaded, db.Path(), db.UsedSpace(), db.StaleSpace())

	store, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	snap, err := db.Shard().Snapshot()
	if err != nil {
		return err
	}
	defer snap.Close()

	rc := resource.NewController(cfg.Resources)
	st, err := archive.Upload(ctx, snap, store, *name, cfg.ArchiveOptions(rc, logger)...)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "archived %d records to %s (%d bytes, %d frames, id %s)\n", st.Records, *name, st.Bytes, st.Frames, st.ID)
	return nil
}

// loadLines puts every non-empty, non-comment line of r into db. The line
// number is the version, so a key repeated later in the input wins.
func newScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), 16<<20)
	return sc
}

func loadLines(ctx context.Context, db *hyperdex.DB, r io.Reader, sep, split []byte) (int, error) {
	sc := newScanner(r)

	var line uint64
	loaded := 0
	for sc.Scan() {
		line++
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 || text[0] == '#' {
			continue
		}
		key, value, ok := bytes.Cut(text, sep)
		if !ok || len(key) == 0 {
			return loaded, fmt.Errorf("line %d: want key%svalue", line, sep)
		}

		parts := [][]byte{value}
		if len(split) > 0 {
			parts = bytes.Split(value, split)
		}
		if err := db.Put(ctx, key, parts, line); err != nil {
			return loaded, fmt.Errorf("line %d: %w", line, err)
		}
		loaded++
	}
	return loaded, sc.Err()
}

// loadRecords puts one encoded codec.Record per line. Records without a
// version get the line number.
func loadRecords(ctx context.Context, db *hyperdex.DB, r io.Reader, dec codec.Codec) (int, error) {
	sc := newScanner(r)

	var line uint64
	loaded := 0
	for sc.Scan() {
		line++
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 {
			continue
		}
		var rec codec.Record
		if err := dec.Unmarshal(text, &rec); err != nil {
			return loaded, fmt.Errorf("line %d: %w", line, err)
		}
		version := rec.Version
		if version == 0 {
			version = line
		}
		if err := db.Put(ctx, []byte(rec.Key), rec.Buffers(), version); err != nil {
			return loaded, fmt.Errorf("line %d: %w", line, err)
		}
		loaded++
	}
	return loaded, sc.Err()
}
