// Package connector holds the sources and destinations of columnar
// transfers.
//
// # Architecture Overview
//
//   - core: the pull interfaces between the dispatcher and a source. A
//     Source prepares once, reports its schema in its own type system and
//     hands out partitions; each partition is read by one goroutine until
//     io.EOF.
//
//   - sources: PostgreSQL (pgx pool, binary protocol), MySQL (database/sql,
//     text protocol) and an in-memory source for tests and samples. Each
//     declares its type system and decodes cells into the bound Go types.
//
//   - destinations/arrowdest: the Arrow destination. It declares the Arrow
//     type system, owns one set of builders per partition writer and
//     collects finished record batches in a store shared by all partitions.
//
//   - registry: maps a source kind to a factory that pairs the source with
//     its transport table, for callers that pick the kind at run time.
//
// # Writing a Source
//
// A source defines a tag type and binds a Go type to every tag:
//
//	type Type uint8
//
//	const (
//	    Int Type = iota
//	    Text
//	    typeCount
//	)
//
//	var System = typesystem.MustSystem("mydb", typeCount, map[Type]typesystem.Binding{
//	    Int:  typesystem.Bind[int64](),
//	    Text: typesystem.Bind[string](),
//	})
//
// and a transport table in pkg/transport/transports with one rule per tag.
// A tag left out of the binding map fails at package init; a tag left out of
// the transport is reported as an unsupported mapping before any row moves.
package connector
