package registry

import (
	"context"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/nebula-columnar/internal/pipeline"
	"github.com/ajitpratap0/nebula-columnar/pkg/config"
	"github.com/ajitpratap0/nebula-columnar/pkg/nebulaerrors"
)

func TestGlobalRegistry_HasBuiltins(t *testing.T) {
	assert.Equal(t, []string{"memory", "mysql", "postgresql"}, ListSources())
	assert.True(t, HasSource(config.SourcePostgreSQL))
	assert.False(t, HasSource("oracle"))
}

func TestRegistry_RegisterTwice(t *testing.T) {
	r := NewRegistry()
	RegisterBuiltins(r)
	RegisterBuiltins(r)

	err := r.RegisterSource(config.SourceMemory, newMemoryRunner)
	assert.True(t, nebulaerrors.IsType(err, nebulaerrors.ErrorTypeConfig))

	r.Clear()
	assert.Empty(t, r.ListSources())
}

func TestCreateRunner_Unknown(t *testing.T) {
	cfg := config.NewTransferConfig("x")
	cfg.Source.Kind = "oracle"

	_, err := NewRegistry().CreateRunner(cfg, pipeline.DefaultConfig(), zaptest.NewLogger(t))
	require.Error(t, err)
	assert.True(t, nebulaerrors.IsType(err, nebulaerrors.ErrorTypeConfig))
}

func TestCreateRunner_FactoryErrorIsWrapped(t *testing.T) {
	cfg := config.NewTransferConfig("x")
	cfg.Source.Kind = config.SourcePostgreSQL

	_, err := CreateRunner(cfg, pipeline.DefaultConfig(), zaptest.NewLogger(t))
	require.Error(t, err)
	assert.True(t, nebulaerrors.IsType(err, nebulaerrors.ErrorTypeConfig))
}

func TestCreateRunner_MySQLBadLocation(t *testing.T) {
	cfg := config.NewTransferConfig("x")
	cfg.Source.Kind = config.SourceMySQL
	cfg.Source.DSN = "root@tcp(localhost:3306)/shop"
	cfg.Source.Queries = []string{"SELECT 1"}
	cfg.Source.Location = "Mars/Olympus"

	_, err := CreateRunner(cfg, pipeline.DefaultConfig(), zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestCreateRunner_Memory(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterSource("sample", func(_ *config.TransferConfig, run pipeline.Config, log *zap.Logger) (Runner, error) {
		return newMemoryRunner(nil, run, log)
	}))

	cfg := config.NewTransferConfig("demo")
	cfg.Source.Kind = "sample"

	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	runner, err := r.CreateRunner(cfg, pipeline.Config{BatchSize: 10000, Allocator: mem}, zaptest.NewLogger(t))
	require.NoError(t, err)

	res, err := runner.Run(context.Background())
	require.NoError(t, err)
	defer res.Release()

	assert.Equal(t, int64(samplePartitions*sampleRows), res.Rows)
	assert.Len(t, res.Partitions, samplePartitions)
	assert.Empty(t, res.Failed())
	assert.Equal(t, 7, res.Schema.NumFields())
}
