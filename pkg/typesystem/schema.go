package typesystem

import (
	"strings"

	"github.com/ajitpratap0/nebula-columnar/pkg/nebulaerrors"
)

// DataOrder is the order in which a source produces cells.
type DataOrder uint8

const (
	// RowMajor yields every column of a row before moving to the next row.
	RowMajor DataOrder = iota
	// ColumnMajor yields every row of a column before moving to the next column.
	ColumnMajor
)

func (o DataOrder) String() string {
	switch o {
	case RowMajor:
		return "row_major"
	case ColumnMajor:
		return "column_major"
	default:
		return "unknown"
	}
}

// ParseDataOrder parses "row_major" / "column_major" (also "row" / "column").
func ParseDataOrder(s string) (DataOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "row_major", "row", "rowmajor", "":
		return RowMajor, nil
	case "column_major", "column", "columnmajor":
		return ColumnMajor, nil
	default:
		return RowMajor, nebulaerrors.Newf(nebulaerrors.ErrorTypeConfig, "unknown data order %q", s)
	}
}

// Field is one named column of a schema.
type Field[T Tag] struct {
	Name   string
	Column Column[T]
}

// Schema is the ordered list of columns on one side of a transfer. It is
// fixed before partitioning and only read afterwards, so it is shared across
// partitions without locking.
type Schema[T Tag] struct {
	fields []Field[T]
}

// NewSchema pairs names with columns.
func NewSchema[T Tag](names []string, cols []Column[T]) (Schema[T], error) {
	if len(names) != len(cols) {
		return Schema[T]{}, nebulaerrors.Newf(nebulaerrors.ErrorTypeValidation,
			"schema has %d names but %d column types", len(names), len(cols))
	}
	fields := make([]Field[T], len(names))
	for i := range names {
		fields[i] = Field[T]{Name: names[i], Column: cols[i]}
	}
	return Schema[T]{fields: fields}, nil
}

// Len returns the number of columns.
func (s Schema[T]) Len() int {
	return len(s.fields)
}

// Field returns column i.
func (s Schema[T]) Field(i int) Field[T] {
	return s.fields[i]
}

// Names returns a copy of the column names.
func (s Schema[T]) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Columns returns a copy of the column types.
func (s Schema[T]) Columns() []Column[T] {
	cols := make([]Column[T], len(s.fields))
	for i, f := range s.fields {
		cols[i] = f.Column
	}
	return cols
}
