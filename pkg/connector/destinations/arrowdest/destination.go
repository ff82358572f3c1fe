// Package arrowdest is the Apache Arrow destination. A Destination owns the
// output schema and a shared batch store; Partition splits it into
// independent PartitionWriters, one per worker goroutine, which append values
// row by row into private builders and publish a record batch to the store
// every time the batch capacity is reached. Once every writer is finalized and
// closed, Drain hands the batches to the caller.
//
//	dest := arrowdest.New(arrowdest.WithBatchSize(64000))
//	if err := dest.Allocate(schema, typesystem.RowMajor); err != nil { ... }
//	writers, _ := dest.Partition(4)
//	// one goroutine per writer: Consume... Finalize, Close
//	batches, err := dest.Drain()
package arrowdest

import (
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-columnar/pkg/logger"
	"github.com/ajitpratap0/nebula-columnar/pkg/nebulaerrors"
	"github.com/ajitpratap0/nebula-columnar/pkg/typesystem"
)

// DefaultBatchSize is the number of rows per record batch.
const DefaultBatchSize = 64000

// Name labels metrics and log lines of this destination.
const Name = "arrow"

type state uint8

const (
	stateUnallocated state = iota
	stateAllocated
	statePartitioned
	stateDrained
)

func (s state) String() string {
	return [...]string{"unallocated", "allocated", "partitioned", "drained"}[s]
}

// Option configures a Destination.
type Option func(*Destination)

// WithAllocator sets the Arrow memory allocator used by every builder.
func WithAllocator(mem memory.Allocator) Option {
	return func(d *Destination) {
		if mem != nil {
			d.mem = mem
		}
	}
}

// WithBatchSize sets the rows per batch. Values below 1 are ignored.
func WithBatchSize(n int) Option {
	return func(d *Destination) {
		if n > 0 {
			d.batchSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Destination) {
		d.logger = l
	}
}

// Destination collects Arrow record batches from concurrent partitions.
type Destination struct {
	mu        sync.Mutex
	state     state
	mem       memory.Allocator
	batchSize int
	logger    *zap.Logger

	schema      Schema
	arrowSchema *arrow.Schema
	functors    []Functors
	store       *batchStore
}

// New returns an unallocated destination.
func New(opts ...Option) *Destination {
	d := &Destination{
		mem:       memory.NewGoAllocator(),
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = logger.OrGlobal(d.logger).With(zap.String("component", "arrow_destination"))
	d.store = newBatchStore()
	return d
}

// DataOrders lists the orders Allocate accepts.
func (d *Destination) DataOrders() []typesystem.DataOrder {
	return []typesystem.DataOrder{typesystem.RowMajor}
}

// BatchSize returns the rows per batch.
func (d *Destination) BatchSize() int {
	return d.batchSize
}

// Allocate fixes the schema. It must be called exactly once, before
// Partition. An unsupported order fails before anything is allocated.
func (d *Destination) Allocate(schema Schema, order typesystem.DataOrder) error {
	if !d.supports(order) {
		return nebulaerrors.Newf(nebulaerrors.ErrorTypeUnsupportedDataOrder,
			"arrow destination does not support %s data order", order).
			WithDetail("order", order.String())
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != stateUnallocated {
		return nebulaerrors.Newf(nebulaerrors.ErrorTypeState, "allocate called on %s destination", d.state)
	}

	fns := make([]Functors, schema.Len())
	fields := make([]arrow.Field, schema.Len())
	for i := 0; i < schema.Len(); i++ {
		f := schema.Field(i)
		fn, ok := functors.Lookup(f.Column.Type)
		if !ok {
			return nebulaerrors.Newf(nebulaerrors.ErrorTypeUnsupportedMapping,
				"column %q has unknown arrow type %d", f.Name, uint8(f.Column.Type))
		}
		fns[i] = fn
		fields[i] = fn.NewField(f.Name, f.Column.Nullable)
	}

	d.schema = schema
	d.functors = fns
	d.arrowSchema = arrow.NewSchema(fields, nil)
	d.state = stateAllocated

	d.logger.Debug("destination allocated",
		zap.Int("columns", schema.Len()),
		zap.Int("batch_size", d.batchSize),
		zap.Stringer("order", order))
	return nil
}

// AllocateColumns is Allocate for parallel name and type slices.
func (d *Destination) AllocateColumns(names []string, cols []Column, order typesystem.DataOrder) error {
	schema, err := typesystem.NewSchema(names, cols)
	if err != nil {
		return err
	}
	return d.Allocate(schema, order)
}

func (d *Destination) supports(order typesystem.DataOrder) bool {
	for _, o := range d.DataOrders() {
		if o == order {
			return true
		}
	}
	return false
}

// Partition creates n writers sharing the schema and the batch store. It can
// be called once, after Allocate.
func (d *Destination) Partition(n int) ([]*PartitionWriter, error) {
	if n < 0 {
		return nil, nebulaerrors.Newf(nebulaerrors.ErrorTypeValidation, "negative partition count %d", n)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != stateAllocated {
		return nil, nebulaerrors.Newf(nebulaerrors.ErrorTypeState, "partition called on %s destination", d.state)
	}

	writers := make([]*PartitionWriter, n)
	for i := range writers {
		writers[i] = newPartitionWriter(d, i, d.store.acquire())
	}
	d.state = statePartitioned

	d.logger.Debug("destination partitioned", zap.Int("partitions", n))
	return writers, nil
}

// Drain returns every batch flushed by the partitions. It fails with
// resource_still_held while a writer has not been closed, and succeeds at
// most once; the caller owns the returned records.
func (d *Destination) Drain() ([]arrow.Record, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state {
	case stateUnallocated, stateAllocated:
		return nil, nebulaerrors.Newf(nebulaerrors.ErrorTypeState, "drain called on %s destination", d.state)
	case stateDrained:
		return nil, nebulaerrors.New(nebulaerrors.ErrorTypeState, "destination already drained")
	}

	batches, err := d.store.extractAll()
	if err != nil {
		return nil, err
	}
	d.state = stateDrained

	var rows int64
	for _, b := range batches {
		rows += b.NumRows()
	}
	d.logger.Info("destination drained",
		zap.Int("batches", len(batches)),
		zap.Int64("rows", rows))
	return batches, nil
}

// Schema returns the destination schema fixed by Allocate.
func (d *Destination) Schema() Schema {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.schema
}

// ArrowSchema returns the Arrow schema of every drained batch, or nil before
// Allocate.
func (d *Destination) ArrowSchema() *arrow.Schema {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.arrowSchema
}

// Pending returns the number of batches flushed and not yet drained.
func (d *Destination) Pending() int {
	return d.store.count()
}

// Release frees batches that were flushed but never drained.
func (d *Destination) Release() {
	d.store.discard()
}
