// Package pipeline runs a transfer: it connects a typed source, a transport
// table and the Arrow destination, and moves every source partition into the
// destination's batch store on its own goroutine.
//
// # Overview
//
// A run goes through fixed steps:
//   - the source is prepared and its schema is mapped through the transport
//     (an unmapped source type fails here, before anything is allocated)
//   - the destination is allocated with the mapped schema and split into one
//     writer per source partition
//   - every partition reads rows, converts each cell with the rule of its
//     column and hands it to its writer
//   - the batch store is drained once every writer is closed
//
// # Basic Usage
//
//	d := pipeline.NewDispatcher(src, transports.PostgresArrow, pipeline.Config{
//	    BatchSize: 64000,
//	}, logger)
//
//	res, err := d.Run(ctx)
//	if err != nil {
//	    return err
//	}
//	defer res.Release()
//
// # Failures
//
// Partitions fail independently. A failed partition stops reading, drops the
// rows it has not flushed yet and releases its store handle; the other
// partitions run to completion and their batches are drained as usual. The
// Result lists the error of every failed partition and Run returns the first.
package pipeline

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/nebula-columnar/pkg/connector/core"
	"github.com/ajitpratap0/nebula-columnar/pkg/connector/destinations/arrowdest"
	"github.com/ajitpratap0/nebula-columnar/pkg/logger"
	"github.com/ajitpratap0/nebula-columnar/pkg/metrics"
	"github.com/ajitpratap0/nebula-columnar/pkg/nebulaerrors"
	"github.com/ajitpratap0/nebula-columnar/pkg/transport"
	"github.com/ajitpratap0/nebula-columnar/pkg/typesystem"
)

const tracerName = "github.com/ajitpratap0/nebula-columnar/internal/pipeline"

// Config controls one transfer.
type Config struct {
	// TransferID tags logs and spans; a random id is used when empty.
	TransferID string
	// BatchSize is the row capacity of every batch (default 64000).
	BatchSize int
	// DataOrder is the order requested from the destination.
	DataOrder typesystem.DataOrder
	// Allocator backs every builder; defaults to the Go allocator.
	Allocator memory.Allocator
	// ProgressInterval is how often throughput is logged; 0 disables it.
	ProgressInterval time.Duration
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		BatchSize: arrowdest.DefaultBatchSize,
		DataOrder: typesystem.RowMajor,
	}
}

// Dispatcher moves the rows of a source of type system S into Arrow batches.
type Dispatcher[S typesystem.Tag] struct {
	source    core.Source[S]
	transport *transport.Transport[S, arrowdest.Type]
	cfg       Config
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewDispatcher returns a dispatcher for one run.
func NewDispatcher[S typesystem.Tag](source core.Source[S], tr *transport.Transport[S, arrowdest.Type], cfg Config, log *zap.Logger) *Dispatcher[S] {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = arrowdest.DefaultBatchSize
	}
	if cfg.Allocator == nil {
		cfg.Allocator = memory.NewGoAllocator()
	}
	if cfg.TransferID == "" {
		cfg.TransferID = uuid.NewString()
	}
	return &Dispatcher[S]{
		source:    source,
		transport: tr,
		cfg:       cfg,
		logger:    logger.OrGlobal(log).With(zap.String("component", "dispatcher")),
		tracer:    otel.Tracer(tracerName),
	}
}

// PartitionStats summarizes one partition of a run.
type PartitionStats struct {
	Index    int
	Rows     int64
	Batches  int
	Duration time.Duration
	Err      error
}

// Result is the outcome of a run. Records are owned by the caller.
type Result struct {
	TransferID string
	Schema     *arrow.Schema
	Records    []arrow.Record
	Rows       int64
	Partitions []PartitionStats
	Duration   time.Duration
}

// Failed returns the stats of partitions that did not complete.
func (r *Result) Failed() []PartitionStats {
	var failed []PartitionStats
	for _, p := range r.Partitions {
		if p.Err != nil {
			failed = append(failed, p)
		}
	}
	return failed
}

// Release releases every record.
func (r *Result) Release() {
	for _, rec := range r.Records {
		rec.Release()
	}
	r.Records = nil
}

// Run performs the transfer. A setup failure (prepare, schema mapping,
// allocation) returns a nil Result. When partitions fail, the Result still
// carries what the other partitions wrote, and the error is the first
// partition failure.
func (d *Dispatcher[S]) Run(ctx context.Context) (*Result, error) {
	timer := metrics.NewTimer()
	ctx = logger.WithTransfer(ctx, d.cfg.TransferID, d.source.Name())
	log := logger.FromContext(ctx, d.logger)

	ctx, span := d.tracer.Start(ctx, "transfer",
		trace.WithAttributes(
			attribute.String("transfer.id", d.cfg.TransferID),
			attribute.String("transfer.source", d.source.Name()),
			attribute.String("transfer.transport", d.transport.Name()),
			attribute.Int("transfer.batch_size", d.cfg.BatchSize),
		))
	defer span.End()

	res, err := d.run(ctx, log)
	if res != nil {
		res.Duration = timer.Stop()
		span.SetAttributes(
			attribute.Int64("transfer.rows", res.Rows),
			attribute.Int("transfer.batches", len(res.Records)))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("transfer failed", zap.Error(err))
		return res, err
	}

	log.Info("transfer completed",
		zap.Int64("rows", res.Rows),
		zap.Int("batches", len(res.Records)),
		zap.Int("partitions", len(res.Partitions)),
		zap.Duration("duration", res.Duration))
	return res, nil
}

func (d *Dispatcher[S]) run(ctx context.Context, log *zap.Logger) (*Result, error) {
	if err := d.source.Prepare(ctx); err != nil {
		return nil, err
	}
	defer func() {
		if err := d.source.Close(context.WithoutCancel(ctx)); err != nil {
			log.Warn("failed to close source", zap.Error(err))
		}
	}()

	srcSchema := d.source.Schema()
	dstSchema, err := d.transport.MapSchema(srcSchema)
	if err != nil {
		return nil, err
	}

	converters := make([]func(any) (any, error), srcSchema.Len())
	for i := range converters {
		converters[i], err = d.transport.Converter(srcSchema.Field(i).Column.Type)
		if err != nil {
			return nil, err
		}
	}

	dest := arrowdest.New(
		arrowdest.WithAllocator(d.cfg.Allocator),
		arrowdest.WithBatchSize(d.cfg.BatchSize),
		arrowdest.WithLogger(d.logger),
	)
	if err := dest.Allocate(dstSchema, d.cfg.DataOrder); err != nil {
		return nil, err
	}

	parts := d.source.Partitions()
	writers, err := dest.Partition(len(parts))
	if err != nil {
		for _, p := range parts {
			p.Close()
		}
		return nil, err
	}

	log.Info("transfer started",
		zap.Int("partitions", len(parts)),
		zap.Int("columns", dstSchema.Len()),
		zap.Int("batch_size", d.cfg.BatchSize))

	tracker := metrics.NewThroughputTracker(d.source.Name(), arrowdest.Name)
	stop := d.reportProgress(ctx, log, tracker)

	stats := make([]PartitionStats, len(parts))
	var g errgroup.Group
	for i := range parts {
		g.Go(func() error {
			stats[i] = d.runPartition(ctx, parts[i], writers[i], converters, tracker)
			return stats[i].Err
		})
	}
	runErr := g.Wait()
	stop()

	records, err := dest.Drain()
	if err != nil {
		dest.Release()
		return nil, errors.Join(runErr, err)
	}

	res := &Result{
		TransferID: d.cfg.TransferID,
		Schema:     dest.ArrowSchema(),
		Records:    records,
		Partitions: stats,
	}
	for _, rec := range records {
		res.Rows += rec.NumRows()
	}
	return res, runErr
}

// runPartition drives one partition to completion. The writer is always
// closed, so its store handle never outlives the partition.
func (d *Dispatcher[S]) runPartition(ctx context.Context, part core.SourcePartition, w *arrowdest.PartitionWriter, converters []func(any) (any, error), tracker *metrics.ThroughputTracker) (stats PartitionStats) {
	timer := metrics.NewTimer()
	stats.Index = w.Index()

	ctx = logger.WithPartition(ctx, w.Index())
	log := logger.FromContext(ctx, d.logger)
	ctx, span := d.tracer.Start(ctx, "partition", trace.WithAttributes(attribute.Int("partition.index", w.Index())))

	defer func() {
		if err := part.Close(); err != nil {
			log.Warn("failed to close source partition", zap.Error(err))
		}
		if err := w.Close(); err != nil && stats.Err == nil {
			stats.Err = err
		}

		stats.Rows = w.RowsWritten()
		stats.Batches = w.Batches()
		stats.Duration = timer.Stop()

		span.SetAttributes(attribute.Int64("partition.rows", stats.Rows))
		if stats.Err != nil {
			span.RecordError(stats.Err)
			span.SetStatus(codes.Error, stats.Err.Error())
			log.Error("partition failed", zap.Error(stats.Err), zap.Int64("rows", stats.Rows))
		} else {
			log.Debug("partition completed", zap.Int64("rows", stats.Rows), zap.Int("batches", stats.Batches))
		}
		span.End()
	}()

	for {
		row, err := part.ReadRow(ctx)
		if err == io.EOF {
			stats.Err = w.Finalize()
			return stats
		}
		if err != nil {
			stats.Err = err
			return stats
		}
		if len(row) != len(converters) {
			stats.Err = nebulaerrors.Newf(nebulaerrors.ErrorTypeData,
				"source row has %d values, schema has %d columns", len(row), len(converters)).
				WithDetail("partition", w.Index())
			return stats
		}

		for col, v := range row {
			out, err := converters[col](v)
			if err != nil {
				if nebulaerrors.IsType(err, nebulaerrors.ErrorTypeConversion) {
					metrics.ConversionFailures.WithLabelValues(d.transport.Name()).Inc()
				}
				stats.Err = withLocation(err, w.Index(), col, w.RowsWritten())
				return stats
			}
			if err := w.Consume(out); err != nil {
				stats.Err = err
				return stats
			}
		}
		tracker.Increment(1)
	}
}

func withLocation(err error, partition, col int, row int64) error {
	var e *nebulaerrors.Error
	if errors.As(err, &e) {
		e.WithDetail("partition", partition).
			WithDetail("column", col).
			WithDetail("row", row)
	}
	return err
}

// reportProgress logs throughput until the returned stop function is called.
func (d *Dispatcher[S]) reportProgress(ctx context.Context, log *zap.Logger, tracker *metrics.ThroughputTracker) (stop func()) {
	if d.cfg.ProgressInterval <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	var stopped atomic.Bool
	go func() {
		ticker := time.NewTicker(d.cfg.ProgressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				log.Info("transfer progress",
					zap.Int64("rows", tracker.Total()),
					zap.Float64("rows_per_second", tracker.GetAndReset()))
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return func() {
		if stopped.CompareAndSwap(false, true) {
			close(done)
		}
	}
}
