package columnar

import (
	"strings"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/nebula-columnar/pkg/nebulaerrors"
)

// ipcWriter is the part shared by ipc.FileWriter and ipc.Writer.
type ipcWriter interface {
	Write(rec arrow.Record) error
	Close() error
}

// arrowWriter implements Writer for the Arrow IPC formats
type arrowWriter struct {
	out         *countingWriter
	format      Format
	arrowSchema *arrow.Schema
	writer      ipcWriter
	rowsWritten int64
	mu          sync.Mutex
}

func newArrowWriter(w *countingWriter, schema *arrow.Schema, config *WriterConfig) (*arrowWriter, error) {
	opts := []ipc.Option{ipc.WithSchema(schema), ipc.WithAllocator(config.Allocator)}

	switch strings.ToLower(config.Compression) {
	case "", "none", "uncompressed":
	case "lz4", "lz4_frame":
		opts = append(opts, ipc.WithLZ4())
	case "zstd":
		opts = append(opts, ipc.WithZstd())
	default:
		return nil, nebulaerrors.Newf(nebulaerrors.ErrorTypeConfig,
			"unsupported compression %q for arrow format", config.Compression)
	}

	aw := &arrowWriter{
		out:         w,
		format:      config.Format,
		arrowSchema: schema,
	}

	if config.Format == ArrowStream {
		aw.writer = ipc.NewWriter(w, opts...)
		return aw, nil
	}

	fw, err := ipc.NewFileWriter(w, opts...)
	if err != nil {
		return nil, nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeFile, "failed to create Arrow writer")
	}
	aw.writer = fw
	return aw, nil
}

func (aw *arrowWriter) Write(rec arrow.Record) error {
	aw.mu.Lock()
	defer aw.mu.Unlock()

	if !rec.Schema().Equal(aw.arrowSchema) {
		return nebulaerrors.New(nebulaerrors.ErrorTypeData, "record schema differs from writer schema")
	}
	if err := aw.writer.Write(rec); err != nil {
		return nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeFile, "failed to write record batch")
	}
	aw.rowsWritten += rec.NumRows()
	return nil
}

func (aw *arrowWriter) Close() error {
	aw.mu.Lock()
	defer aw.mu.Unlock()

	if err := aw.writer.Close(); err != nil {
		return nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeFile, "failed to close Arrow writer")
	}
	return nil
}

func (aw *arrowWriter) Format() Format {
	return aw.format
}

func (aw *arrowWriter) BytesWritten() int64 {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	return aw.out.n
}

func (aw *arrowWriter) RowsWritten() int64 {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	return aw.rowsWritten
}

func readArrowFile(r ReadAtSeeker, mem memory.Allocator) (*arrow.Schema, []arrow.Record, error) {
	fr, err := ipc.NewFileReader(r, ipc.WithAllocator(mem))
	if err != nil {
		return nil, nil, nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeFile, "failed to create Arrow reader")
	}
	defer fr.Close()

	records := make([]arrow.Record, 0, fr.NumRecords())
	for i := 0; i < fr.NumRecords(); i++ {
		rec, err := fr.RecordAt(i)
		if err != nil {
			releaseAll(records)
			return nil, nil, nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeFile, "failed to read record batch").
				WithDetail("batch", i)
		}
		records = append(records, rec)
	}
	return fr.Schema(), records, nil
}

func readArrowStream(r ReadAtSeeker, mem memory.Allocator) (*arrow.Schema, []arrow.Record, error) {
	rdr, err := ipc.NewReader(r, ipc.WithAllocator(mem))
	if err != nil {
		return nil, nil, nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeFile, "failed to create Arrow stream reader")
	}
	defer rdr.Release()

	var records []arrow.Record
	for rdr.Next() {
		rec := rdr.Record()
		rec.Retain()
		records = append(records, rec)
	}
	if err := rdr.Err(); err != nil {
		releaseAll(records)
		return nil, nil, nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeFile, "failed to read record batch")
	}
	return rdr.Schema(), records, nil
}

func releaseAll(records []arrow.Record) {
	for _, rec := range records {
		rec.Release()
	}
}
