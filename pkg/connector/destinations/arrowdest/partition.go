package arrowdest

import (
	"errors"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-columnar/pkg/metrics"
	"github.com/ajitpratap0/nebula-columnar/pkg/nebulaerrors"
)

// PartitionWriter appends one partition's values into private builders.
// Values arrive row-major: one per column, then the next row. A writer is not
// safe for concurrent use; each worker owns one.
type PartitionWriter struct {
	dest     *Destination
	index    int
	handle   *storeHandle
	schema   Schema
	functors []Functors
	logger   *zap.Logger

	builders   []array.Builder // nil until the first value of a batch
	currentCol int
	currentRow int
	written    int64
	batches    int
	closed     bool
}

func newPartitionWriter(d *Destination, index int, h *storeHandle) *PartitionWriter {
	metrics.ActivePartitions.WithLabelValues(Name).Inc()
	return &PartitionWriter{
		dest:     d,
		index:    index,
		handle:   h,
		schema:   d.schema,
		functors: d.functors,
		logger:   d.logger.With(zap.Int("partition", index)),
	}
}

// Index returns the partition number.
func (w *PartitionWriter) Index() int {
	return w.index
}

// NCols returns the number of columns per row.
func (w *PartitionWriter) NCols() int {
	return w.schema.Len()
}

// RowsWritten returns the complete rows consumed so far, flushed or not.
func (w *PartitionWriter) RowsWritten() int64 {
	return w.written
}

// Batches returns the number of batches this writer published.
func (w *PartitionWriter) Batches() int {
	return w.batches
}

// Consume appends v to the current column. The value is checked against the
// column type first; a mismatch leaves the builders and the cursor untouched.
func (w *PartitionWriter) Consume(v any) error {
	if w.closed {
		return nebulaerrors.Newf(nebulaerrors.ErrorTypeState, "consume on closed partition %d", w.index)
	}
	ncols := w.schema.Len()
	if ncols == 0 {
		return nebulaerrors.New(nebulaerrors.ErrorTypeState, "consume on a destination without columns")
	}

	col := w.currentCol
	field := w.schema.Field(col)
	if err := System.Matches(field.Column, v); err != nil {
		metrics.TypeMismatches.WithLabelValues(Name).Inc()
		var e *nebulaerrors.Error
		if errors.As(err, &e) {
			e.WithDetail("column", field.Name).
				WithDetail("partition", w.index).
				WithDetail("row", w.written)
		}
		return err
	}

	if w.builders == nil {
		w.allocate()
	}
	if err := w.functors[col].Append(w.builders[col], v); err != nil {
		return nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeTypeMismatch, "append failed").
			WithDetail("column", field.Name)
	}

	w.currentCol++
	if w.currentCol < ncols {
		return nil
	}
	w.currentCol = 0
	w.currentRow++
	w.written++
	metrics.RowsConsumed.WithLabelValues(Name).Inc()

	if w.currentRow >= w.dest.batchSize {
		return w.flush()
	}
	return nil
}

// ConsumeRow consumes one value per column.
func (w *PartitionWriter) ConsumeRow(row []any) error {
	if len(row) != w.schema.Len() {
		return nebulaerrors.Newf(nebulaerrors.ErrorTypeData,
			"row has %d values, schema has %d columns", len(row), w.schema.Len())
	}
	for _, v := range row {
		if err := w.Consume(v); err != nil {
			return err
		}
	}
	return nil
}

// Finalize publishes the rows still buffered. It is a no-op when nothing is
// buffered, so calling it twice is safe. Finalizing in the middle of a row is
// a data error.
func (w *PartitionWriter) Finalize() error {
	if w.closed {
		return nil
	}
	if w.currentCol != 0 {
		return nebulaerrors.Newf(nebulaerrors.ErrorTypeData,
			"partition %d finalized in the middle of a row (column %d of %d)",
			w.index, w.currentCol, w.schema.Len())
	}
	if w.builders == nil || w.currentRow == 0 {
		return nil
	}
	return w.flush()
}

// Close releases the writer's hold on the batch store. Buffered rows that
// were not finalized are discarded. Close is idempotent.
func (w *PartitionWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if w.currentRow > 0 || w.currentCol > 0 {
		w.logger.Warn("partition closed with unflushed rows",
			zap.Int("rows", w.currentRow),
			zap.Int("column", w.currentCol))
	}
	w.releaseBuilders()
	w.handle.release()
	metrics.ActivePartitions.WithLabelValues(Name).Dec()
	return nil
}

func (w *PartitionWriter) allocate() {
	w.builders = make([]array.Builder, len(w.functors))
	for i, f := range w.functors {
		w.builders[i] = f.NewBuilder(w.dest.mem, w.dest.batchSize)
	}
}

func (w *PartitionWriter) releaseBuilders() {
	for _, b := range w.builders {
		b.Release()
	}
	w.builders = nil
	w.currentRow = 0
	w.currentCol = 0
}

// flush finishes every builder and publishes the batch. The record is built
// before the store lock is taken. Builders are recreated lazily by the next
// Consume, so a partition whose row count is a multiple of the batch size
// does not publish an empty batch at Finalize.
func (w *PartitionWriter) flush() error {
	timer := metrics.NewTimer()

	cols := make([]arrow.Array, len(w.builders))
	for i, b := range w.builders {
		cols[i] = w.functors[i].Finish(b)
	}
	nrows := int64(w.currentRow)
	rec := array.NewRecord(w.dest.arrowSchema, cols, nrows)
	for _, c := range cols {
		c.Release()
	}
	w.releaseBuilders()

	if err := w.handle.append(rec); err != nil {
		rec.Release()
		return err
	}
	w.batches++

	metrics.BatchesFlushed.WithLabelValues(Name).Inc()
	metrics.FlushLatency.WithLabelValues(Name).Observe(timer.Stop().Seconds())
	w.logger.Debug("batch flushed", zap.Int64("rows", nrows), zap.Int("batch", w.batches))
	return nil
}
