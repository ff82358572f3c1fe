package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	mem "github.com/ajitpratap0/nebula-columnar/pkg/connector/sources/memory"
	"github.com/ajitpratap0/nebula-columnar/pkg/transport/transports"
)

// BenchmarkDispatcher measures rows per second for a fixed row count spread
// over a growing number of partitions.
func BenchmarkDispatcher(b *testing.B) {
	const totalRows = 200000

	for _, partitions := range []int{1, 2, 4, runtime.NumCPU()} {
		rows := int64(partitions * (totalRows / partitions))

		b.Run(fmt.Sprintf("partitions=%d", partitions), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				b.StopTimer()
				src := mem.Sample(partitions, totalRows/partitions)
				b.StartTimer()

				d := NewDispatcher(src, transports.MemoryArrow, Config{
					BatchSize: 64000,
					Allocator: memory.NewGoAllocator(),
				}, zap.NewNop())
				res, err := d.Run(context.Background())
				if err != nil {
					b.Fatal(err)
				}
				if res.Rows != rows {
					b.Fatalf("moved %d rows, want %d", res.Rows, rows)
				}
				res.Release()
			}
			b.ReportMetric(float64(rows)*float64(b.N)/b.Elapsed().Seconds(), "rows/s")
		})
	}
}
