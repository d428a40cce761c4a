package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testConfig writes a config for a small shard and a local store under a
// temporary directory.
func testConfig(t *testing.T, extra string) (path, root string) {
	t.Helper()
	root = t.TempDir()
	body := fmt.Sprintf(`
dir: %s
shard: test.shard
log:
  level: error
geometry:
  hash_table_entries: 1024
  search_index_entries: 8192
  data_size: 1048576
store:
  kind: local
  path: %s
archive:
  codec: snappy
  block_size: 4096
%s`, filepath.Join(root, "data"), filepath.Join(root, "archives"), extra)
	path = filepath.Join(root, "hyperdex.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path, root
}

func TestRun_Usage(t *testing.T) {
	ctx := context.Background()
	assert.ErrorIs(t, run(ctx, nil, nil, &bytes.Buffer{}), errUsage)
	assert.ErrorIs(t, run(ctx, []string{"frobnicate"}, nil, &bytes.Buffer{}), errUsage)
}

func TestRun_LoadDumpRestore(t *testing.T) {
	ctx := context.Background()
	cfgPath, root := testConfig(t, "")

	input := strings.Join([]string{
		"# users",
		"alice=admin|ops",
		"bob=dev",
		"",
		"alice=root",
		"carol=",
	}, "\n")

	var out bytes.Buffer
	err := run(ctx, []string{"load", "-config", cfgPath, "-split", "|"}, strings.NewReader(input), &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "loaded 4 lines")
	assert.Contains(t, out.String(), "archived 3 records to test.shard.hdx")
	assert.FileExists(t, filepath.Join(root, "archives", "test.shard.hdx"))

	out.Reset()
	require.NoError(t, run(ctx, []string{"dump", "-config", cfgPath}, nil, &out))
	dump := out.String()
	assert.Contains(t, dump, "codec snappy geometry 1024/8192/1048576")
	assert.Contains(t, dump, "\"bob\"\t3\t\"dev\"\n")
	assert.Contains(t, dump, "\"alice\"\t5\t\"root\"\n")
	assert.Contains(t, dump, "\"carol\"\t6\t\"\"\n")
	assert.NotContains(t, dump, "admin")
	assert.Contains(t, dump, "# 3 records")

	out.Reset()
	require.NoError(t, run(ctx, []string{"dump", "-config", cfgPath, "-header"}, nil, &out))
	assert.NotContains(t, out.String(), "records")

	out.Reset()
	require.NoError(t, run(ctx, []string{"restore", "-config", cfgPath, "-out", "restored.shard"}, nil, &out))
	assert.Contains(t, out.String(), "keys     3 live, 0 dead slots")
	assert.Contains(t, out.String(), "stale    0%")
	assert.FileExists(t, filepath.Join(root, "data", "restored.shard"))
}

func TestRun_DumpJSONReload(t *testing.T) {
	ctx := context.Background()
	cfgPath, _ := testConfig(t, "")
	input := "alice=admin|ops\nbob=dev\n"
	require.NoError(t, run(ctx, []string{"load", "-config", cfgPath, "-split", "|"}, strings.NewReader(input), &bytes.Buffer{}))

	var dump bytes.Buffer
	require.NoError(t, run(ctx, []string{"dump", "-config", cfgPath, "-format", "go-json"}, nil, &dump))
	assert.Contains(t, dump.String(), `{"key":"alice","version":1,"value":["admin","ops"]}`+"\n")
	assert.Contains(t, dump.String(), `{"key":"bob","version":2,"value":["dev"]}`+"\n")
	assert.NotContains(t, dump.String(), "#")

	otherCfg, otherRoot := testConfig(t, "")
	dumpFile := filepath.Join(otherRoot, "dump.jsonl")
	require.NoError(t, os.WriteFile(dumpFile, dump.Bytes(), 0o644))

	var out bytes.Buffer
	require.NoError(t, run(ctx, []string{"load", "-config", otherCfg, "-format", "json", "-input", dumpFile}, nil, &out))
	assert.Contains(t, out.String(), "loaded 2 lines")

	var again bytes.Buffer
	require.NoError(t, run(ctx, []string{"dump", "-config", otherCfg, "-format", "json"}, nil, &again))
	assert.ElementsMatch(t, strings.Split(dump.String(), "\n"), strings.Split(again.String(), "\n"))
}

func TestRun_BadFormat(t *testing.T) {
	cfgPath, _ := testConfig(t, "")
	ctx := context.Background()
	assert.ErrorIs(t, run(ctx, []string{"dump", "-config", cfgPath, "-format", "xml"}, nil, &bytes.Buffer{}), errUsage)
	assert.ErrorIs(t, run(ctx, []string{"dump", "-config", cfgPath, "-format", "json", "-header"}, nil, &bytes.Buffer{}), errUsage)
	assert.ErrorIs(t, run(ctx, []string{"load", "-config", cfgPath, "-format", "xml"}, strings.NewReader(""), &bytes.Buffer{}), errUsage)
}

func TestRun_LoadBadLine(t *testing.T) {
	cfgPath, _ := testConfig(t, "")
	err := run(context.Background(), []string{"load", "-config", cfgPath}, strings.NewReader("ok=1\nnovalue\n"), &bytes.Buffer{})
	assert.ErrorContains(t, err, "line 2")
}

func TestRun_DumpMissing(t *testing.T) {
	cfgPath, _ := testConfig(t, "")
	err := run(context.Background(), []string{"dump", "-config", cfgPath, "-archive", "nope.hdx"}, nil, &bytes.Buffer{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRun_Bench(t *testing.T) {
	cfgPath, root := testConfig(t, `
bench:
  ops: 20000
  keys: 500
  skew: 1.2
  mix:
    get: 0.2
    put: 0.7
    del: 0.1
policy:
  used_threshold: 1
  stale_threshold: 5
`)

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"bench", "-config", cfgPath}, nil, &out))
	assert.Contains(t, out.String(), "ops        20000")
	assert.Contains(t, out.String(), "policy     clean")

	// The shard was cleaned in place.
	entries, err := os.ReadDir(filepath.Join(root, "data"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "test.shard", entries[0].Name())
	assert.Equal(t, 2, strings.Count(out.String(), "shard      "))
}

func TestRun_BenchSplit(t *testing.T) {
	cfgPath, root := testConfig(t, `
bench:
  ops: 2000
  keys: 200
  mix:
    get: 0
    put: 1
    del: 0
policy:
  used_threshold: 1
  stale_threshold: 100
`)

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"bench", "-config", cfgPath}, nil, &out))
	assert.Contains(t, out.String(), "policy     split")
	assert.FileExists(t, filepath.Join(root, "data", "test-0.shard"))
	assert.FileExists(t, filepath.Join(root, "data", "test-1.shard"))
}
