// Package metrics provides Prometheus instrumentation for transfers. The
// destination partitions record rows, flushed batches and flush latency; the
// dispatcher records per-source read counts and conversion failures; the CLI
// can expose everything through promhttp.
//
// # Basic Usage
//
//	metrics.RowsConsumed.WithLabelValues("arrow").Add(float64(rows))
//
//	timer := metrics.NewTimer()
//	flush()
//	metrics.FlushLatency.WithLabelValues("arrow").Observe(timer.Stop().Seconds())
//
//	tracker := metrics.NewThroughputTracker("postgresql", "arrow")
//	tracker.Increment(int64(rows))
//	rowsPerSec := tracker.GetAndReset()
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RowsRead counts rows pulled from sources.
	// Labels: source
	RowsRead = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebula_columnar_rows_read_total",
			Help: "Total number of rows read from sources",
		},
		[]string{"source"},
	)

	// RowsConsumed counts complete rows written into destination builders.
	// Labels: destination
	RowsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebula_columnar_rows_consumed_total",
			Help: "Total number of rows appended to destination builders",
		},
		[]string{"destination"},
	)

	// BatchesFlushed counts batches published to the shared batch store.
	// Labels: destination
	BatchesFlushed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebula_columnar_batches_flushed_total",
			Help: "Total number of record batches published to the batch store",
		},
		[]string{"destination"},
	)

	// FlushLatency tracks the time to finish builders and publish one batch.
	// Labels: destination
	FlushLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nebula_columnar_flush_latency_seconds",
			Help:    "Time spent finishing builders and publishing a batch",
			Buckets: prometheus.ExponentialBuckets(1e-5, 4, 10),
		},
		[]string{"destination"},
	)

	// TypeMismatches counts values rejected because their native type did not
	// match the column's type tag.
	// Labels: destination
	TypeMismatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebula_columnar_type_mismatches_total",
			Help: "Total number of values rejected by the column type check",
		},
		[]string{"destination"},
	)

	// ConversionFailures counts values rejected by fallible or lossy conversions.
	// Labels: transport
	ConversionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebula_columnar_conversion_failures_total",
			Help: "Total number of values rejected by transport conversions",
		},
		[]string{"transport"},
	)

	// ActivePartitions tracks partition writers that still hold a batch store handle.
	// Labels: destination
	ActivePartitions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nebula_columnar_active_partitions",
			Help: "Number of partition writers holding a batch store handle",
		},
		[]string{"destination"},
	)

	// Throughput tracks rows per second of the last measured window.
	// Labels: source, destination
	Throughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nebula_columnar_throughput_rows_per_second",
			Help: "Current throughput in rows per second",
		},
		[]string{"source", "destination"},
	)
)

// Timer measures an elapsed duration.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed duration since creation. It can be called
// multiple times.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker tracks throughput (rows per second) over time windows.
// Thread-safe for concurrent use by partition workers.
type ThroughputTracker struct {
	mu          sync.Mutex
	count       int64     // Rows since last reset
	total       int64     // Rows since creation
	lastReset   time.Time // Time of last reset
	source      string
	destination string
}

// NewThroughputTracker creates a new throughput tracker for a transfer.
func NewThroughputTracker(source, destination string) *ThroughputTracker {
	return &ThroughputTracker{
		lastReset:   time.Now(),
		source:      source,
		destination: destination,
	}
}

// Increment adds n to the row count. Safe for concurrent use.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
	t.total += n
}

// Total returns the number of rows counted since creation.
func (t *ThroughputTracker) Total() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// GetAndReset calculates the throughput of the current window, publishes it to
// the Throughput gauge, and starts a new window.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}

	throughput := float64(t.count) / elapsed

	t.count = 0
	t.lastReset = time.Now()

	Throughput.WithLabelValues(t.source, t.destination).Set(throughput)

	return throughput
}
