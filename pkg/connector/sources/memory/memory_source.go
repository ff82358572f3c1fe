// Package memory provides a source over rows held in memory. Rows are taken
// as given: a cell whose Go type disagrees with its column is handed to the
// destination unchanged and rejected there, which makes the source useful
// for exercising the failure paths of a transfer.
package memory

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/ajitpratap0/nebula-columnar/pkg/connector/core"
	"github.com/ajitpratap0/nebula-columnar/pkg/metrics"
	"github.com/ajitpratap0/nebula-columnar/pkg/nebulaerrors"
	"github.com/ajitpratap0/nebula-columnar/pkg/typesystem"
)

// SourceName labels logs and metrics of this source.
const SourceName = "memory"

// Type is the in-memory source type system.
type Type uint8

const (
	Bool Type = iota
	Int8
	Int16
	Int32
	Int64
	UInt32
	Float32
	Float64
	String
	Bytes
	Timestamp
	Date
	typeCount
)

var typeNames = [...]string{
	Bool:      "Bool",
	Int8:      "Int8",
	Int16:     "Int16",
	Int32:     "Int32",
	Int64:     "Int64",
	UInt32:    "UInt32",
	Float32:   "Float32",
	Float64:   "Float64",
	String:    "String",
	Bytes:     "Bytes",
	Timestamp: "Timestamp",
	Date:      "Date",
}

func (t Type) String() string {
	if t < typeCount {
		return typeNames[t]
	}
	return "Unknown"
}

// System binds the in-memory tags to plain Go types.
var System = typesystem.MustSystem("memory", typeCount, map[Type]typesystem.Binding{
	Bool:      typesystem.Bind[bool](),
	Int8:      typesystem.Bind[int8](),
	Int16:     typesystem.Bind[int16](),
	Int32:     typesystem.Bind[int32](),
	Int64:     typesystem.Bind[int64](),
	UInt32:    typesystem.Bind[uint32](),
	Float32:   typesystem.Bind[float32](),
	Float64:   typesystem.Bind[float64](),
	String:    typesystem.Bind[string](),
	Bytes:     typesystem.Bind[[]byte](),
	Timestamp: typesystem.Bind[time.Time](),
	Date:      typesystem.Bind[time.Time](),
})

// Schema is an in-memory schema.
type Schema = typesystem.Schema[Type]

// Rows is one partition's rows, each with one cell per column.
type Rows [][]any

// Source serves fixed partitions of rows.
type Source struct {
	schema     Schema
	partitions []Rows

	mu       sync.Mutex
	prepared bool
	closed   bool
}

var _ core.Source[Type] = (*Source)(nil)

// NewSource returns a source with one partition per Rows value. Row widths
// are checked against the schema here; cell types are not.
func NewSource(schema Schema, partitions ...Rows) (*Source, error) {
	for p, rows := range partitions {
		for r, row := range rows {
			if len(row) != schema.Len() {
				return nil, nebulaerrors.Newf(nebulaerrors.ErrorTypeValidation,
					"partition %d row %d has %d cells, schema has %d columns", p, r, len(row), schema.Len())
			}
		}
	}
	return &Source{schema: schema, partitions: partitions}, nil
}

// MustSource is NewSource for tests and examples.
func MustSource(schema Schema, partitions ...Rows) *Source {
	s, err := NewSource(schema, partitions...)
	if err != nil {
		panic(err)
	}
	return s
}

// Name implements core.Source.
func (s *Source) Name() string {
	return SourceName
}

// Prepare implements core.Source.
func (s *Source) Prepare(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nebulaerrors.New(nebulaerrors.ErrorTypeState, "source is closed")
	}
	s.prepared = true
	return nil
}

// Schema implements core.Source.
func (s *Source) Schema() Schema {
	return s.schema
}

// Partitions implements core.Source. Every call starts the partitions over.
func (s *Source) Partitions() []core.SourcePartition {
	parts := make([]core.SourcePartition, len(s.partitions))
	for i, rows := range s.partitions {
		parts[i] = &partition{index: i, rows: rows}
	}
	return parts
}

// Close implements core.Source.
func (s *Source) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type partition struct {
	index int
	rows  Rows
	next  int
}

func (p *partition) ReadRow(ctx context.Context) ([]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeTimeout, "partition read cancelled").
			WithDetail("partition", p.index)
	}
	if p.next >= len(p.rows) {
		return nil, io.EOF
	}
	row := p.rows[p.next]
	p.next++
	metrics.RowsRead.WithLabelValues(SourceName).Inc()
	return row, nil
}

func (p *partition) Close() error {
	p.next = len(p.rows)
	return nil
}
