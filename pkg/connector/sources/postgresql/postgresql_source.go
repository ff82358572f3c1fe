package postgresql

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-columnar/pkg/connector/core"
	"github.com/ajitpratap0/nebula-columnar/pkg/logger"
	"github.com/ajitpratap0/nebula-columnar/pkg/metrics"
	"github.com/ajitpratap0/nebula-columnar/pkg/nebulaerrors"
	"github.com/ajitpratap0/nebula-columnar/pkg/typesystem"
)

// SourceName labels logs and metrics of this source.
const SourceName = "postgresql"

// Config configures a PostgreSQL source.
type Config struct {
	// DSN is a libpq connection string or postgres:// URL.
	DSN string
	// Queries holds one query per partition. Every query must return the
	// same columns; the schema is taken from the first one.
	Queries []string
	// MaxConns caps the pool; 0 means one connection per partition.
	MaxConns int32
	// ConnectTimeout bounds pool creation and schema discovery.
	ConnectTimeout time.Duration
	// MaxConnLifetime and MaxConnIdleTime are passed to the pool.
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// PostgreSQLSource reads query results through a pgx pool, one query per
// partition.
type PostgreSQLSource struct {
	cfg    Config
	logger *zap.Logger

	mu         sync.Mutex
	pool       *pgxpool.Pool
	poolConfig *pgxpool.Config
	schema     typesystem.Schema[Type]
	types      []Type
	prepared   bool
}

var _ core.Source[Type] = (*PostgreSQLSource)(nil)

// NewPostgreSQLSource validates cfg and returns an unprepared source.
func NewPostgreSQLSource(cfg Config, log *zap.Logger) (*PostgreSQLSource, error) {
	if cfg.DSN == "" {
		return nil, nebulaerrors.New(nebulaerrors.ErrorTypeConfig, "postgresql dsn is required")
	}
	if len(cfg.Queries) == 0 {
		return nil, nebulaerrors.New(nebulaerrors.ErrorTypeConfig, "at least one query is required")
	}
	return &PostgreSQLSource{
		cfg:    cfg,
		logger: logger.OrGlobal(log).With(zap.String("component", "postgresql_source")),
	}, nil
}

// Name implements core.Source.
func (s *PostgreSQLSource) Name() string {
	return SourceName
}

// Prepare connects and discovers the result schema of the first query.
func (s *PostgreSQLSource) Prepare(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.prepared {
		return nebulaerrors.New(nebulaerrors.ErrorTypeState, "source already prepared")
	}

	if s.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ConnectTimeout)
		defer cancel()
	}

	if err := s.setupConnectionPool(ctx); err != nil {
		return err
	}
	if err := s.discoverSchema(ctx); err != nil {
		s.pool.Close()
		s.pool = nil
		return err
	}

	s.prepared = true
	return nil
}

// setupConnectionPool configures and creates the PostgreSQL connection pool
func (s *PostgreSQLSource) setupConnectionPool(ctx context.Context) error {
	var err error

	s.poolConfig, err = pgxpool.ParseConfig(s.cfg.DSN)
	if err != nil {
		return nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeConfig, "failed to parse connection string")
	}

	s.poolConfig.MaxConns = s.cfg.MaxConns
	if s.poolConfig.MaxConns <= 0 {
		s.poolConfig.MaxConns = int32(len(s.cfg.Queries))
	}
	s.poolConfig.MinConns = 0

	s.poolConfig.MaxConnLifetime = s.cfg.MaxConnLifetime
	if s.poolConfig.MaxConnLifetime <= 0 {
		s.poolConfig.MaxConnLifetime = time.Hour
	}
	s.poolConfig.MaxConnIdleTime = s.cfg.MaxConnIdleTime
	if s.poolConfig.MaxConnIdleTime <= 0 {
		s.poolConfig.MaxConnIdleTime = 30 * time.Minute
	}

	s.pool, err = pgxpool.NewWithConfig(ctx, s.poolConfig)
	if err != nil {
		return nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeConnection, "failed to create connection pool")
	}

	var version string
	if err := s.pool.QueryRow(ctx, "SHOW server_version").Scan(&version); err != nil {
		s.pool.Close()
		s.pool = nil
		return nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeConnection, "failed to validate connection")
	}

	s.logger.Info("Connected to PostgreSQL",
		zap.String("version", version),
		zap.Int32("max_connections", s.poolConfig.MaxConns),
		zap.Duration("idle_timeout", s.poolConfig.MaxConnIdleTime))
	return nil
}

// discoverSchema describes the first query without running it.
func (s *PostgreSQLSource) discoverSchema(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeConnection, "failed to acquire connection")
	}
	defer conn.Release()

	sd, err := conn.Conn().Prepare(ctx, "", s.cfg.Queries[0])
	if err != nil {
		return nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeQuery, "failed to describe query").
			WithDetail("query", s.cfg.Queries[0])
	}

	schema, types, err := s.schemaFromFields(ctx, conn.Conn(), sd.Fields)
	if err != nil {
		return err
	}

	s.schema = schema
	s.types = types
	s.logger.Info("Discovered query schema", zap.Int("columns", len(types)))
	return nil
}

func (s *PostgreSQLSource) schemaFromFields(ctx context.Context, conn *pgx.Conn, fields []pgconn.FieldDescription) (typesystem.Schema[Type], []Type, error) {
	names := make([]string, len(fields))
	cols := make([]typesystem.Column[Type], len(fields))
	types := make([]Type, len(fields))

	for i, fd := range fields {
		t, ok := FromOID(fd.DataTypeOID)
		if !ok {
			isEnum, err := enumOID(ctx, conn, fd.DataTypeOID)
			if err != nil {
				return typesystem.Schema[Type]{}, nil, err
			}
			if !isEnum {
				return typesystem.Schema[Type]{}, nil, nebulaerrors.Newf(nebulaerrors.ErrorTypeUnsupportedMapping,
					"column %q has unsupported postgresql type oid %d", fd.Name, fd.DataTypeOID).
					WithDetail("column", fd.Name).
					WithDetail("oid", fd.DataTypeOID)
			}
			t = Enum
		}
		names[i] = fd.Name
		types[i] = t
		// Result columns carry no nullability information.
		cols[i] = typesystem.Nullable(t)
	}

	schema, err := typesystem.NewSchema(names, cols)
	return schema, types, err
}

func enumOID(ctx context.Context, conn *pgx.Conn, oid uint32) (bool, error) {
	var typtype string
	err := conn.QueryRow(ctx, "SELECT typtype::text FROM pg_type WHERE oid = $1", oid).Scan(&typtype)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeQuery, "failed to look up type oid").
			WithDetail("oid", oid)
	}
	return typtype == "e", nil
}

// Schema implements core.Source.
func (s *PostgreSQLSource) Schema() typesystem.Schema[Type] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schema
}

// Partitions returns one partition per configured query.
func (s *PostgreSQLSource) Partitions() []core.SourcePartition {
	s.mu.Lock()
	defer s.mu.Unlock()

	parts := make([]core.SourcePartition, len(s.cfg.Queries))
	for i, q := range s.cfg.Queries {
		parts[i] = &partition{
			source: s,
			index:  i,
			query:  q,
			types:  s.types,
		}
	}
	return parts
}

// Close closes the PostgreSQL connection pool.
func (s *PostgreSQLSource) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
	s.prepared = false
	s.logger.Info("PostgreSQL source closed")
	return nil
}

type partition struct {
	source *PostgreSQLSource
	index  int
	query  string
	types  []Type

	conn  *pgxpool.Conn
	rows  pgx.Rows
	cells []cell
	dests []any
	row   []any
	done  bool
}

// ReadRow implements core.SourcePartition. The query runs on the first call.
func (p *partition) ReadRow(ctx context.Context) ([]any, error) {
	if p.done {
		return nil, io.EOF
	}
	if p.rows == nil {
		if err := p.start(ctx); err != nil {
			return nil, err
		}
	}

	if !p.rows.Next() {
		p.done = true
		err := p.rows.Err()
		p.release()
		if err != nil {
			return nil, nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeQuery, "failed to read partition rows").
				WithDetail("partition", p.index)
		}
		return nil, io.EOF
	}

	if err := p.rows.Scan(p.dests...); err != nil {
		return nil, nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeData, "failed to scan row").
			WithDetail("partition", p.index)
	}
	for i, c := range p.cells {
		v, err := c.value()
		if err != nil {
			var e *nebulaerrors.Error
			if !errors.As(err, &e) {
				e = nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeData, "failed to decode cell")
			}
			return nil, e.WithDetail("column", p.source.schema.Field(i).Name).WithDetail("partition", p.index)
		}
		p.row[i] = v
	}
	metrics.RowsRead.WithLabelValues(SourceName).Inc()
	return p.row, nil
}

func (p *partition) start(ctx context.Context) error {
	p.source.mu.Lock()
	pool := p.source.pool
	p.source.mu.Unlock()
	if pool == nil {
		return nebulaerrors.New(nebulaerrors.ErrorTypeState, "source is not prepared")
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeConnection, "failed to acquire connection").
			WithDetail("partition", p.index)
	}

	rows, err := conn.Query(ctx, p.query)
	if err != nil {
		conn.Release()
		return nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeQuery, "failed to execute partition query").
			WithDetail("partition", p.index).
			WithDetail("query", p.query)
	}

	if n := len(rows.FieldDescriptions()); n != len(p.types) {
		rows.Close()
		conn.Release()
		return nebulaerrors.Newf(nebulaerrors.ErrorTypeData,
			"partition %d query returns %d columns, schema has %d", p.index, n, len(p.types))
	}

	p.conn = conn
	p.rows = rows
	p.cells, p.dests = newCells(p.types)
	p.row = make([]any, len(p.types))
	return nil
}

func (p *partition) release() {
	if p.rows != nil {
		p.rows.Close()
	}
	if p.conn != nil {
		p.conn.Release()
		p.conn = nil
	}
}

// Close implements core.SourcePartition.
func (p *partition) Close() error {
	p.done = true
	p.release()
	return nil
}
