package registry

import (
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-columnar/internal/pipeline"
	"github.com/ajitpratap0/nebula-columnar/pkg/config"
	"github.com/ajitpratap0/nebula-columnar/pkg/connector/sources/memory"
	"github.com/ajitpratap0/nebula-columnar/pkg/connector/sources/mysql"
	"github.com/ajitpratap0/nebula-columnar/pkg/connector/sources/postgresql"
	"github.com/ajitpratap0/nebula-columnar/pkg/nebulaerrors"
	"github.com/ajitpratap0/nebula-columnar/pkg/transport/transports"
)

// Shape of the memory sample source.
const (
	samplePartitions = 4
	sampleRows       = 25000
)

func init() {
	RegisterBuiltins(globalRegistry)
}

// RegisterBuiltins registers the postgresql, mysql and memory sources in r.
func RegisterBuiltins(r *Registry) {
	for name, f := range map[string]SourceFactory{
		config.SourcePostgreSQL: newPostgreSQLRunner,
		config.SourceMySQL:      newMySQLRunner,
		config.SourceMemory:     newMemoryRunner,
	} {
		if r.HasSource(name) {
			continue
		}
		if err := r.RegisterSource(name, f); err != nil {
			panic(err)
		}
	}
}

func newPostgreSQLRunner(cfg *config.TransferConfig, run pipeline.Config, log *zap.Logger) (Runner, error) {
	src, err := postgresql.NewPostgreSQLSource(postgresql.Config{
		DSN:            cfg.Source.DSN,
		Queries:        cfg.Source.Queries,
		MaxConns:       int32(cfg.Source.MaxConns), //nolint:gosec // validated non-negative
		ConnectTimeout: cfg.Source.ConnectTimeout,
	}, log)
	if err != nil {
		return nil, err
	}
	return pipeline.NewDispatcher(src, transports.PostgresArrow, run, log), nil
}

func newMySQLRunner(cfg *config.TransferConfig, run pipeline.Config, log *zap.Logger) (Runner, error) {
	var loc *time.Location
	if cfg.Source.Location != "" {
		l, err := time.LoadLocation(cfg.Source.Location)
		if err != nil {
			return nil, nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeConfig, "invalid source location")
		}
		loc = l
	}

	src, err := mysql.NewMySQLSource(mysql.Config{
		DSN:          cfg.Source.DSN,
		Queries:      cfg.Source.Queries,
		MaxOpenConns: cfg.Source.MaxConns,
		Location:     loc,
	}, log)
	if err != nil {
		return nil, err
	}
	return pipeline.NewDispatcher(src, transports.MySQLArrow, run, log), nil
}

// newMemoryRunner serves memory.Sample; it needs no connection and is used
// to try out formats and storage.
func newMemoryRunner(_ *config.TransferConfig, run pipeline.Config, log *zap.Logger) (Runner, error) {
	return pipeline.NewDispatcher(memory.Sample(samplePartitions, sampleRows), transports.MemoryArrow, run, log), nil
}
