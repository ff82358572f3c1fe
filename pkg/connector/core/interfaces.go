package core

import (
	"context"

	"github.com/ajitpratap0/nebula-columnar/pkg/typesystem"
)

// ConnectorType represents the type of connector
type ConnectorType string

const (
	ConnectorTypeSource      ConnectorType = "source"
	ConnectorTypeDestination ConnectorType = "destination"
)

// Source produces typed rows for a transfer. S is the source type system.
//
// Prepare runs once before anything else and discovers the schema (for
// database sources it runs a metadata query). Schema and Partitions are only
// valid after Prepare succeeded.
type Source[S typesystem.Tag] interface {
	// Name identifies the source kind in logs and metrics.
	Name() string
	Prepare(ctx context.Context) error
	Schema() typesystem.Schema[S]
	Partitions() []SourcePartition
	Close(ctx context.Context) error
}

// SourcePartition is a synchronous pull over one partition's rows.
//
// ReadRow returns one value per schema column, in schema order, each with
// the native type bound to the column's tag (nil for SQL NULL). The end of
// data is io.EOF; any other error is a typed nebulaerrors value. Values of
// view types ([]byte) may alias the partition's read buffer and are only
// valid until the next ReadRow.
type SourcePartition interface {
	ReadRow(ctx context.Context) ([]any, error)
	Close() error
}

// PartitionConsumer receives one partition's values, one per column, row
// after row.
type PartitionConsumer interface {
	Consume(v any) error
	Finalize() error
	Close() error
}

// DataOrderer is implemented by destinations that declare which data orders
// they accept.
type DataOrderer interface {
	DataOrders() []typesystem.DataOrder
}
