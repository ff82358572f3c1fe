package columnar

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-columnar/internal/pipeline"
	mem "github.com/ajitpratap0/nebula-columnar/pkg/connector/sources/memory"
	"github.com/ajitpratap0/nebula-columnar/pkg/transport/transports"
)

// benchRecords transfers the memory sample into Arrow batches.
func benchRecords(b *testing.B, rows int) (*arrow.Schema, []arrow.Record) {
	b.Helper()
	d := pipeline.NewDispatcher(mem.Sample(1, rows), transports.MemoryArrow, pipeline.Config{
		BatchSize: 64000,
		Allocator: memory.NewGoAllocator(),
	}, zap.NewNop())
	res, err := d.Run(context.Background())
	if err != nil {
		b.Fatal(err)
	}
	return res.Schema, res.Records
}

var benchCases = []struct {
	format      Format
	compression string
}{
	{Arrow, "none"},
	{Arrow, "lz4"},
	{Arrow, "zstd"},
	{Parquet, "snappy"},
	{Parquet, "zstd"},
}

func BenchmarkWriteAll(b *testing.B) {
	for _, rows := range []int{10000, 100000} {
		schema, recs := benchRecords(b, rows)
		for _, bc := range benchCases {
			b.Run(fmt.Sprintf("%s/%s/%d", bc.format, bc.compression, rows), func(b *testing.B) {
				var buf bytes.Buffer
				var n int64
				b.ReportAllocs()
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					buf.Reset()
					var err error
					n, err = WriteAll(&buf, schema, recs, &WriterConfig{Format: bc.format, Compression: bc.compression})
					if err != nil {
						b.Fatal(err)
					}
				}
				b.ReportMetric(float64(rows)*float64(b.N)/b.Elapsed().Seconds(), "rows/s")
				b.ReportMetric(float64(n)/float64(rows), "bytes/row")
			})
		}
		releaseAll(recs)
	}
}

func BenchmarkReadAll(b *testing.B) {
	const rows = 100000
	schema, recs := benchRecords(b, rows)
	defer releaseAll(recs)

	for _, bc := range benchCases {
		var buf bytes.Buffer
		if _, err := WriteAll(&buf, schema, recs, &WriterConfig{Format: bc.format, Compression: bc.compression}); err != nil {
			b.Fatal(err)
		}
		data := buf.Bytes()

		b.Run(fmt.Sprintf("%s/%s", bc.format, bc.compression), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(data)))
			for i := 0; i < b.N; i++ {
				_, got, err := ReadAll(bytes.NewReader(data), bc.format, nil)
				if err != nil {
					b.Fatal(err)
				}
				releaseAll(got)
			}
		})
	}
}
