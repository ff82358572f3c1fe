package columnar

import (
	"context"
	"strings"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/ajitpratap0/nebula-columnar/pkg/nebulaerrors"
)

// parquetWriter implements Writer for Parquet format
type parquetWriter struct {
	out         *countingWriter
	arrowSchema *arrow.Schema
	fileWriter  *pqarrow.FileWriter
	rowsWritten int64
	mu          sync.Mutex
}

func newParquetWriter(w *countingWriter, schema *arrow.Schema, config *WriterConfig) (*parquetWriter, error) {
	codec, err := getParquetCompression(config.Compression)
	if err != nil {
		return nil, err
	}

	opts := []parquet.WriterProperty{
		parquet.WithCompression(codec),
		parquet.WithDictionaryDefault(config.EnableDictionary),
		parquet.WithAllocator(config.Allocator),
	}
	if config.PageSize > 0 {
		opts = append(opts, parquet.WithDataPageSize(config.PageSize))
	}
	if config.RowGroupSize > 0 {
		opts = append(opts, parquet.WithMaxRowGroupLength(config.RowGroupSize))
	}
	props := parquet.NewWriterProperties(opts...)

	// The stored schema restores large and timezone-aware types on read.
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithAllocator(config.Allocator),
		pqarrow.WithStoreSchema(),
	)

	fw, err := pqarrow.NewFileWriter(schema, w, props, arrowProps)
	if err != nil {
		return nil, nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeFile, "failed to create Parquet writer")
	}

	return &parquetWriter{
		out:         w,
		arrowSchema: schema,
		fileWriter:  fw,
	}, nil
}

func (pw *parquetWriter) Write(rec arrow.Record) error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if !rec.Schema().Equal(pw.arrowSchema) {
		return nebulaerrors.New(nebulaerrors.ErrorTypeData, "record schema differs from writer schema")
	}
	if err := pw.fileWriter.Write(rec); err != nil {
		return nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeFile, "failed to write row group")
	}
	pw.rowsWritten += rec.NumRows()
	return nil
}

func (pw *parquetWriter) Close() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if err := pw.fileWriter.Close(); err != nil {
		return nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeFile, "failed to close Parquet writer")
	}
	return nil
}

func (pw *parquetWriter) Format() Format {
	return Parquet
}

func (pw *parquetWriter) BytesWritten() int64 {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	return pw.out.n
}

func (pw *parquetWriter) RowsWritten() int64 {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	return pw.rowsWritten
}

func readParquet(r ReadAtSeeker, mem memory.Allocator) (*arrow.Schema, []arrow.Record, error) {
	fr, err := file.NewParquetReader(r)
	if err != nil {
		return nil, nil, nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeFile, "failed to create Parquet reader")
	}
	defer fr.Close()

	arrowReader, err := pqarrow.NewFileReader(fr, pqarrow.ArrowReadProperties{BatchSize: 64 * 1024}, mem)
	if err != nil {
		return nil, nil, nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeFile, "failed to create Arrow reader")
	}

	rr, err := arrowReader.GetRecordReader(context.Background(), nil, nil)
	if err != nil {
		return nil, nil, nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeFile, "failed to read Parquet row groups")
	}
	defer rr.Release()

	var records []arrow.Record
	for rr.Next() {
		rec := rr.Record()
		rec.Retain()
		records = append(records, rec)
	}
	if err := rr.Err(); err != nil {
		releaseAll(records)
		return nil, nil, nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeFile, "failed to read record batch")
	}
	return rr.Schema(), records, nil
}

func getParquetCompression(compression string) (compress.Compression, error) {
	switch strings.ToLower(compression) {
	case "", "snappy":
		return compress.Codecs.Snappy, nil
	case "none", "uncompressed":
		return compress.Codecs.Uncompressed, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "brotli":
		return compress.Codecs.Brotli, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	default:
		return compress.Codecs.Uncompressed, nebulaerrors.Newf(nebulaerrors.ErrorTypeConfig,
			"unsupported compression %q for parquet format", compression)
	}
}
