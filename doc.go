// Package nebula moves query results from several databases into Apache
// Arrow record batches and writes them as Arrow IPC or Parquet files.
//
// # Architecture
//
// Every side of a transfer has its own type system: a small enum of type
// tags with one Go native type bound to each tag. A transfer is built from
// three tables, all checked for completeness when the program starts:
//
//  1. The source type system (PostgreSQL, MySQL, memory) says which Go value
//     the source produces for each column.
//  2. The Arrow destination type system says which Go value each Arrow
//     builder accepts, and how to create, append to and finish that builder.
//  3. A transport table maps every source tag to one destination tag with a
//     policy: identity, lossless widening, fallible or lossy conversion, or
//     an owning copy of a borrowed buffer.
//
// The dispatcher reads every source partition on its own goroutine, converts
// each cell through the transport, and appends it to the partition's Arrow
// builders. Full builders are finished into record batches and handed to a
// store shared by all partitions; the store is drained once, after every
// partition writer is closed.
//
// # Quick Start
//
//	src, _ := postgresql.NewPostgreSQLSource(postgresql.Config{
//	    DSN:     "postgres://etl@db/shop",
//	    Queries: []string{"SELECT * FROM orders WHERE id % 2 = 0", "SELECT * FROM orders WHERE id % 2 = 1"},
//	}, logger.Get())
//
//	d := pipeline.NewDispatcher(src, transports.PostgresArrow, pipeline.DefaultConfig(), logger.Get())
//	res, err := d.Run(ctx)
//	if err != nil {
//	    return err
//	}
//	defer res.Release()
//
//	_, err = columnar.WriteAll(w, res.Schema, res.Records, columnar.DefaultWriterConfig())
//
// # Key Packages
//
//	pkg/typesystem          - Type tags, native bindings and schemas
//	pkg/dispatch            - Exhaustive per-tag dispatch tables
//	pkg/transport           - Transport rules and policies
//	pkg/transport/transports - The source to Arrow transport tables
//	pkg/connector/sources   - PostgreSQL, MySQL and memory sources
//	pkg/connector/destinations/arrowdest - Arrow builders, partition writers, batch store
//	internal/pipeline       - The partition dispatcher
//	pkg/formats/columnar    - Arrow IPC and Parquet writers
//	pkg/storage             - Local and S3 output
//	pkg/config              - Transfer configuration
//	pkg/nebulaerrors        - Structured error handling
//	pkg/logger              - Structured logging
//	pkg/metrics             - Prometheus metrics
//
// # Command Line
//
//	nebula run --source mysql --dsn 'etl@tcp(db:3306)/shop' \
//	    --query 'SELECT * FROM orders' --output s3://lake/orders.parquet
//	nebula types postgres_arrow
//
// Flags can also be given as NEBULA_* environment variables or in a YAML
// file passed with --config; ${VAR_NAME} references in the file are expanded.
package nebula
