// Package mysql implements a MySQL source over database/sql and the
// go-sql-driver text protocol. Queries run without arguments, so every cell
// arrives as text and is decoded per column tag from a sql.RawBytes view.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	driver "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-columnar/pkg/connector/core"
	"github.com/ajitpratap0/nebula-columnar/pkg/logger"
	"github.com/ajitpratap0/nebula-columnar/pkg/metrics"
	"github.com/ajitpratap0/nebula-columnar/pkg/nebulaerrors"
	"github.com/ajitpratap0/nebula-columnar/pkg/typesystem"
)

// SourceName labels logs and metrics of this source.
const SourceName = "mysql"

// Config configures a MySQL source.
type Config struct {
	// DSN is a go-sql-driver data source name, user:pass@tcp(host:3306)/db.
	DSN string
	// Queries holds one query per partition; the schema is taken from the
	// first one.
	Queries []string
	// MaxOpenConns caps the pool; 0 means one connection per partition.
	MaxOpenConns int
	// ConnMaxLifetime is passed to the pool.
	ConnMaxLifetime time.Duration
	// Location is the zone DATETIME and TIMESTAMP values are read in. It
	// defaults to the DSN's loc parameter, which defaults to UTC.
	Location *time.Location
}

// MySQLSource reads query results over database/sql, one query per partition.
type MySQLSource struct {
	cfg    Config
	dsn    *driver.Config
	logger *zap.Logger

	mu       sync.Mutex
	db       *sql.DB
	schema   typesystem.Schema[Type]
	types    []Type
	prepared bool
}

var _ core.Source[Type] = (*MySQLSource)(nil)

// NewMySQLSource validates cfg and returns an unprepared source.
func NewMySQLSource(cfg Config, log *zap.Logger) (*MySQLSource, error) {
	if cfg.DSN == "" {
		return nil, nebulaerrors.New(nebulaerrors.ErrorTypeConfig, "mysql dsn is required")
	}
	if len(cfg.Queries) == 0 {
		return nil, nebulaerrors.New(nebulaerrors.ErrorTypeConfig, "at least one query is required")
	}

	dsn, err := driver.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeConfig, "failed to parse mysql dsn")
	}
	// Cells are decoded from their text form.
	dsn.ParseTime = false
	dsn.InterpolateParams = false
	if cfg.Location == nil {
		cfg.Location = dsn.Loc
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	return &MySQLSource{
		cfg:    cfg,
		dsn:    dsn,
		logger: logger.OrGlobal(log).With(zap.String("component", "mysql_source")),
	}, nil
}

// Name implements core.Source.
func (s *MySQLSource) Name() string {
	return SourceName
}

// Prepare opens the pool and reads the column metadata of the first query.
func (s *MySQLSource) Prepare(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.prepared {
		return nebulaerrors.New(nebulaerrors.ErrorTypeState, "source already prepared")
	}

	connector, err := driver.NewConnector(s.dsn)
	if err != nil {
		return nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeConfig, "failed to create mysql connector")
	}
	db := sql.OpenDB(connector)

	maxOpen := s.cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = len(s.cfg.Queries)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	if s.cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeConnection, "failed to connect to mysql")
	}

	schema, types, err := s.discoverSchema(ctx, db)
	if err != nil {
		db.Close()
		return err
	}

	s.db = db
	s.schema = schema
	s.types = types
	s.prepared = true

	s.logger.Info("Connected to MySQL",
		zap.String("addr", s.dsn.Addr),
		zap.String("database", s.dsn.DBName),
		zap.Int("max_connections", maxOpen),
		zap.Int("columns", len(types)))
	return nil
}

// discoverSchema reads the result columns of the first query without
// fetching any row.
func (s *MySQLSource) discoverSchema(ctx context.Context, db *sql.DB) (typesystem.Schema[Type], []Type, error) {
	query := fmt.Sprintf("SELECT * FROM (%s) AS _nebula_schema LIMIT 0", s.cfg.Queries[0])
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return typesystem.Schema[Type]{}, nil, nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeQuery, "failed to describe query").
			WithDetail("query", s.cfg.Queries[0])
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return typesystem.Schema[Type]{}, nil, nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeQuery, "failed to read column types")
	}
	return schemaFromColumns(colTypes)
}

// columnType is the part of *sql.ColumnType the schema is built from.
type columnType interface {
	Name() string
	DatabaseTypeName() string
	Nullable() (nullable, ok bool)
}

func schemaFromColumns[C columnType](colTypes []C) (typesystem.Schema[Type], []Type, error) {
	names := make([]string, len(colTypes))
	cols := make([]typesystem.Column[Type], len(colTypes))
	types := make([]Type, len(colTypes))

	for i, ct := range colTypes {
		t, ok := FromDatabaseTypeName(ct.DatabaseTypeName())
		if !ok {
			return typesystem.Schema[Type]{}, nil, nebulaerrors.Newf(nebulaerrors.ErrorTypeUnsupportedMapping,
				"column %q has unsupported mysql type %s", ct.Name(), ct.DatabaseTypeName()).
				WithDetail("column", ct.Name()).
				WithDetail("source_type", ct.DatabaseTypeName())
		}

		names[i] = ct.Name()
		types[i] = t
		if nullable, ok := ct.Nullable(); ok && !nullable {
			cols[i] = typesystem.NotNull(t)
		} else {
			cols[i] = typesystem.Nullable(t)
		}
	}

	schema, err := typesystem.NewSchema(names, cols)
	return schema, types, err
}

// Schema implements core.Source.
func (s *MySQLSource) Schema() typesystem.Schema[Type] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schema
}

// Partitions returns one partition per configured query.
func (s *MySQLSource) Partitions() []core.SourcePartition {
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

// Close closes the connection pool.
func (s *MySQLSource) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.db != nil {
		err = s.db.Close()
		s.db = nil
	}
	s.prepared = false
	s.logger.Info("MySQL source closed")
	if err != nil {
		return nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeConnection, "failed to close mysql pool")
	}
	return nil
}

type partition struct {
	source *MySQLSource
	index  int
	query  string
	types  []Type

	rows  *sql.Rows
	raw   []sql.RawBytes
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
		p.rows.Close()
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

	loc := p.source.cfg.Location
	for i, t := range p.types {
		v, err := decode(t, p.raw[i], loc)
		if err != nil {
			var e *nebulaerrors.Error
			if !errors.As(err, &e) {
				return nil, err
			}
			return nil, e.WithDetail("column", p.source.schema.Field(i).Name).
				WithDetail("partition", p.index)
		}
		p.row[i] = v
	}
	metrics.RowsRead.WithLabelValues(SourceName).Inc()
	return p.row, nil
}

func (p *partition) start(ctx context.Context) error {
	p.source.mu.Lock()
	db := p.source.db
	p.source.mu.Unlock()
	if db == nil {
		return nebulaerrors.New(nebulaerrors.ErrorTypeState, "source is not prepared")
	}

	rows, err := db.QueryContext(ctx, p.query)
	if err != nil {
		return nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeQuery, "failed to execute partition query").
			WithDetail("partition", p.index).
			WithDetail("query", p.query)
	}

	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeQuery, "failed to read partition columns")
	}
	if len(cols) != len(p.types) {
		rows.Close()
		return nebulaerrors.Newf(nebulaerrors.ErrorTypeData,
			"partition %d query returns %d columns, schema has %d", p.index, len(cols), len(p.types))
	}

	p.rows = rows
	p.raw = make([]sql.RawBytes, len(p.types))
	p.dests = make([]any, len(p.types))
	for i := range p.raw {
		p.dests[i] = &p.raw[i]
	}
	p.row = make([]any, len(p.types))
	return nil
}

// Close implements core.SourcePartition.
func (p *partition) Close() error {
	p.done = true
	if p.rows != nil {
		return p.rows.Close()
	}
	return nil
}
