// Package connector provides examples of using the Nebula connectors.
package connector_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ajitpratap0/nebula-columnar/internal/pipeline"
	"github.com/ajitpratap0/nebula-columnar/pkg/config"
	"github.com/ajitpratap0/nebula-columnar/pkg/connector/registry"
	"github.com/ajitpratap0/nebula-columnar/pkg/connector/sources/memory"
	"github.com/ajitpratap0/nebula-columnar/pkg/transport/transports"
	"github.com/ajitpratap0/nebula-columnar/pkg/typesystem"
)

// Example moves two partitions of in-memory rows into Arrow batches.
func Example() {
	schema, err := typesystem.NewSchema(
		[]string{"id", "city", "seen"},
		[]typesystem.Column[memory.Type]{
			typesystem.NotNull(memory.Int64),
			typesystem.Nullable(memory.String),
			typesystem.NotNull(memory.Timestamp),
		},
	)
	if err != nil {
		log.Fatal(err)
	}

	seen := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	src := memory.MustSource(schema,
		memory.Rows{{int64(1), "Lisbon", seen}, {int64(2), nil, seen}},
		memory.Rows{{int64(3), "Oslo", seen}},
	)

	d := pipeline.NewDispatcher(src, transports.MemoryArrow, pipeline.Config{BatchSize: 2}, nil)
	res, err := d.Run(context.Background())
	if err != nil {
		log.Fatal(err)
	}
	defer res.Release()

	fmt.Println("rows:", res.Rows)
	for _, f := range res.Schema.Fields() {
		fmt.Printf("%s: %s nullable=%t\n", f.Name, f.Type, f.Nullable)
	}

	// Output:
	// rows: 3
	// id: int64 nullable=false
	// city: large_utf8 nullable=true
	// seen: timestamp[us, tz=UTC] nullable=false
}

// Example_registry creates a runner for a source kind chosen at run time.
func Example_registry() {
	cfg := config.NewTransferConfig("sample")
	cfg.Source.Kind = config.SourceMemory

	runner, err := registry.CreateRunner(cfg, pipeline.Config{BatchSize: 50000}, nil)
	if err != nil {
		log.Fatal(err)
	}
	res, err := runner.Run(context.Background())
	if err != nil {
		log.Fatal(err)
	}
	defer res.Release()

	fmt.Println("partitions:", len(res.Partitions))
	fmt.Println("rows:", res.Rows)

	// Output:
	// partitions: 4
	// rows: 100000
}
