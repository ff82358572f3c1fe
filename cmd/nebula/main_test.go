package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/nebula-columnar/pkg/formats/columnar"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transfer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: from-file
source:
  kind: postgresql
  dsn: postgres://file@db/shop
  queries:
    - SELECT 1
transfer:
  batch_size: 1000
output:
  path: out.parquet
`), 0o600))
	return path
}

func TestLoadTransferConfig_Precedence(t *testing.T) {
	path := writeConfig(t)

	t.Run("file over defaults", func(t *testing.T) {
		cmd := newRunCmd()
		require.NoError(t, cmd.Flags().Parse(nil))

		cfg, err := loadTransferConfig(cmd.Flags(), path)
		require.NoError(t, err)
		assert.Equal(t, "from-file", cfg.Name)
		assert.Equal(t, 1000, cfg.Transfer.BatchSize)
		assert.Equal(t, []string{"SELECT 1"}, cfg.Source.Queries)
		assert.Equal(t, "row_major", cfg.Transfer.DataOrder)
		assert.Equal(t, 10*time.Second, cfg.Transfer.ProgressInterval)
	})

	t.Run("env over file", func(t *testing.T) {
		t.Setenv("NEBULA_TRANSFER_BATCH_SIZE", "2000")
		t.Setenv("NEBULA_SOURCE_DSN", "postgres://env@db/shop")

		cmd := newRunCmd()
		require.NoError(t, cmd.Flags().Parse(nil))

		cfg, err := loadTransferConfig(cmd.Flags(), path)
		require.NoError(t, err)
		assert.Equal(t, 2000, cfg.Transfer.BatchSize)
		assert.Equal(t, "postgres://env@db/shop", cfg.Source.DSN)
	})

	t.Run("flags over env", func(t *testing.T) {
		t.Setenv("NEBULA_TRANSFER_BATCH_SIZE", "2000")

		cmd := newRunCmd()
		require.NoError(t, cmd.Flags().Parse([]string{
			"--batch-size", "3000",
			"--query", "SELECT a, b FROM t WHERE x = 1",
			"--query", "SELECT a, b FROM t WHERE x = 2",
			"--progress-interval", "1m",
		}))

		cfg, err := loadTransferConfig(cmd.Flags(), path)
		require.NoError(t, err)
		assert.Equal(t, 3000, cfg.Transfer.BatchSize)
		assert.Equal(t, []string{"SELECT a, b FROM t WHERE x = 1", "SELECT a, b FROM t WHERE x = 2"}, cfg.Source.Queries)
		assert.Equal(t, time.Minute, cfg.Transfer.ProgressInterval)
		assert.Equal(t, "postgres://file@db/shop", cfg.Source.DSN)
	})
}

func TestLoadTransferConfig_MissingFile(t *testing.T) {
	cmd := newRunCmd()
	require.NoError(t, cmd.Flags().Parse(nil))
	_, err := loadTransferConfig(cmd.Flags(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestRunCommand_MemoryToArrow(t *testing.T) {
	out := filepath.Join(t.TempDir(), "sample.arrow")

	var stdout bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetArgs([]string{
		"run",
		"--source", "memory",
		"--output", out,
		"--format", "arrow",
		"--compression", "zstd",
		"--batch-size", "30000",
		"--progress-interval", "0",
		"--log-level", "warn",
	})
	require.NoError(t, root.Execute())

	var s summary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &s))
	assert.Equal(t, out, s.Location)
	assert.Equal(t, "memory", s.Source)
	assert.Equal(t, int64(100000), s.Rows)
	assert.Equal(t, 4, s.Partitions)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()

	stat, err := f.Stat()
	require.NoError(t, err)
	assert.Equal(t, s.Bytes, stat.Size())

	schema, recs, err := columnar.ReadAll(f, columnar.Arrow, memory.NewGoAllocator())
	require.NoError(t, err)
	defer func() {
		for _, r := range recs {
			r.Release()
		}
	}()
	assert.Equal(t, 7, schema.NumFields())

	var rows int64
	for _, r := range recs {
		rows += r.NumRows()
	}
	assert.Equal(t, int64(100000), rows)
	assert.Equal(t, s.Batches, len(recs))
}

func TestRunCommand_InvalidConfig(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"run", "--source", "postgresql", "--output", "x.parquet"})
	assert.Error(t, root.Execute())
}

func TestTypesCommand(t *testing.T) {
	var stdout bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetArgs([]string{"types", "--json", "mysql_arrow"})
	require.NoError(t, root.Execute())

	var tables map[string][]string
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &tables))
	require.Contains(t, tables, "mysql_arrow")
	assert.NotEmpty(t, tables["mysql_arrow"])

	root = newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"types", "oracle_arrow"})
	assert.Error(t, root.Execute())
}
