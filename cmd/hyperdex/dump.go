package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/agiz/HyperDex/archive"
	"github.com/agiz/HyperDex/blobstore"
	"github.com/agiz/HyperDex/codec"
	"github.com/agiz/HyperDex/resource"
)

func runDump(ctx context.Context, args []string, _ io.Reader, stdout io.Writer) error {
	fs, cfgPath := newFlagSet("dump")
	name := fs.String("archive", "", "archive name in the store (default <shard>.hdx)")
	headerOnly := fs.Bool("header", false, "print only the archive header")
	format := fs.String("format", "text", "record format: text, json or go-json")
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
	var enc codec.Codec
	if *format != "text" {
		var ok bool
		if enc, ok = codec.ByName(*format); !ok {
			return fmt.Errorf("%w: unknown format %q", errUsage, *format)
		}
		if *headerOnly {
			return fmt.Errorf("%w: -header needs -format text", errUsage)
		}
	}

	r, err := openArchive(ctx, cfg, *name)
	if err != nil {
		return err
	}
	defer r.Close()

	ar, err := archive.NewReader(r)
	if err != nil {
		return err
	}
	h := ar.Header()
	w := bufio.NewWriter(stdout)
	defer w.Flush()

	if enc == nil {
		fmt.Fprintf(w, "# archive %s codec %s geometry %d/%d/%d\n", h.ID, h.Codec,
			h.Geometry.HashTableEntries, h.Geometry.SearchIndexEntries, h.Geometry.DataSize)
	}
	if *headerOnly {
		return nil
	}

	var line []byte
	for rec, err := range ar.All() {
		if err != nil {
			return err
		}
		if enc != nil {
			if line, err = codec.AppendLine(line[:0], enc, codec.FromShard(rec)); err != nil {
				return err
			}
			if _, err := w.Write(line); err != nil {
				return err
			}
			continue
		}
		values := make([]string, len(rec.Value))
		for i, v := range rec.Value {
			values[i] = strconv.Quote(string(v))
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", strconv.Quote(string(rec.Key)), rec.Version, strings.Join(values, ","))
	}
	if enc == nil {
		fmt.Fprintf(w, "# %d records\n", ar.Records())
	}
	return nil
}

// openArchive opens the named archive from the configured store, throttled
// by the configured IO limit.
func openArchive(ctx context.Context, cfg Config, name string) (io.ReadCloser, error) {
	store, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", name, err)
	}
	r, err := blobstore.NewReader(ctx, blob)
	if err != nil {
		_ = blob.Close()
		return nil, err
	}

	rc := resource.NewController(cfg.Resources)
	return &archiveReader{
		Reader: resource.NewRateLimitedReader(ctx, r, rc),
		close: func() error {
			err := r.Close()
			if cerr := blob.Close(); err == nil {
				err = cerr
			}
			return err
		},
	}, nil
}

type archiveReader struct {
	io.Reader
	close func() error
}

func (a *archiveReader) Close() error { return a.close() }
