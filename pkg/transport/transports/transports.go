// Package transports declares the transport table of every source type system
// that can be written to Arrow. Each table is one literal list of rules, one
// per source tag; a tag missing from a table is reported as an unsupported
// mapping when a schema using it is mapped.
package transports

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ajitpratap0/nebula-columnar/pkg/connector/destinations/arrowdest"
	"github.com/ajitpratap0/nebula-columnar/pkg/connector/sources/memory"
	"github.com/ajitpratap0/nebula-columnar/pkg/connector/sources/mysql"
	"github.com/ajitpratap0/nebula-columnar/pkg/connector/sources/postgresql"
	"github.com/ajitpratap0/nebula-columnar/pkg/transport"
)

// PostgresArrow moves PostgreSQL query results into Arrow.
var PostgresArrow = transport.MustNew("postgres_arrow", postgresql.System, arrowdest.System,
	transport.Identity[bool](postgresql.Bool, arrowdest.Boolean),
	transport.Identity[int16](postgresql.Int2, arrowdest.Int16),
	transport.Identity[int32](postgresql.Int4, arrowdest.Int32),
	transport.Identity[int64](postgresql.Int8, arrowdest.Int64),
	transport.Identity[float32](postgresql.Float4, arrowdest.Float32),
	transport.Identity[float64](postgresql.Float8, arrowdest.Float64),
	transport.Lossy(postgresql.Numeric, arrowdest.Float64, decimalFloat64),
	transport.Owned(postgresql.Text, arrowdest.LargeUtf8, ownedString),
	transport.Owned(postgresql.BpChar, arrowdest.LargeUtf8, ownedString),
	transport.Owned(postgresql.VarChar, arrowdest.LargeUtf8, ownedString),
	transport.Owned(postgresql.Name, arrowdest.LargeUtf8, ownedString),
	transport.Owned(postgresql.Enum, arrowdest.LargeUtf8, ownedString),
	transport.Owned(postgresql.Char, arrowdest.LargeUtf8, ownedString),
	transport.Lossy(postgresql.Timestamp, arrowdest.TimestampMicro, timestampMicros),
	transport.Lossy(postgresql.TimestampTz, arrowdest.TimestampTzMicro, timestampMicros),
	transport.Lossy(postgresql.Date, arrowdest.Date32, date32),
	transport.Lossy(postgresql.Time, arrowdest.Time64Micro, func(t pgtype.Time) (arrow.Time64, error) {
		return timeOfDay(t.Microseconds)
	}),
	transport.Owned(postgresql.UUID, arrowdest.LargeUtf8, uuid.UUID.String),
	transport.Owned(postgresql.ByteA, arrowdest.LargeBinary, ownedBytes),
	transport.Lossy(postgresql.JSON, arrowdest.LargeUtf8, compactJSON),
	transport.Lossy(postgresql.JSONB, arrowdest.LargeUtf8, compactJSON),
	transport.Identity[[]*bool](postgresql.BoolArray, arrowdest.BooleanList),
	transport.Identity[[]*int16](postgresql.Int2Array, arrowdest.Int16List),
	transport.Identity[[]*int32](postgresql.Int4Array, arrowdest.Int32List),
	transport.Identity[[]*int64](postgresql.Int8Array, arrowdest.Int64List),
	transport.Identity[[]*float32](postgresql.Float4Array, arrowdest.Float32List),
	transport.Identity[[]*float64](postgresql.Float8Array, arrowdest.Float64List),
	transport.Identity[[]*string](postgresql.TextArray, arrowdest.Utf8List),
	transport.Identity[[]*string](postgresql.VarcharArray, arrowdest.Utf8List),
	transport.Lossy(postgresql.NumericArray, arrowdest.Float64List, decimalFloat64List),
)

// MySQLArrow moves MySQL query results into Arrow.
var MySQLArrow = transport.MustNew("mysql_arrow", mysql.System, arrowdest.System,
	transport.AutoCast[int8, int16](mysql.Tiny, arrowdest.Int16),
	transport.Identity[int16](mysql.Short, arrowdest.Int16),
	transport.Identity[int32](mysql.Int24, arrowdest.Int32),
	transport.Identity[int32](mysql.Long, arrowdest.Int32),
	transport.Identity[int64](mysql.LongLong, arrowdest.Int64),
	transport.AutoCast[uint32, int64](mysql.UInt32, arrowdest.Int64),
	transport.Lossy(mysql.UInt64, arrowdest.Int64, uint64Int64),
	transport.AutoCast[float32, float64](mysql.Float, arrowdest.Float64),
	transport.Identity[float64](mysql.Double, arrowdest.Float64),
	transport.Lossy(mysql.Decimal, arrowdest.Float64, decimalFloat64),
	transport.Owned(mysql.VarChar, arrowdest.LargeUtf8, ownedString),
	transport.Owned(mysql.Char, arrowdest.LargeUtf8, ownedString),
	transport.Owned(mysql.Text, arrowdest.LargeUtf8, ownedString),
	transport.Owned(mysql.Enum, arrowdest.LargeUtf8, ownedString),
	transport.Owned(mysql.Blob, arrowdest.LargeBinary, ownedBytes),
	transport.Lossy(mysql.Date, arrowdest.Date32, date32),
	transport.Lossy(mysql.Datetime, arrowdest.TimestampMicro, timestampMicros),
	transport.Lossy(mysql.Timestamp, arrowdest.TimestampTzMicro, timestampMicros),
	transport.Lossy(mysql.Time, arrowdest.Time64Micro, durationTimeOfDay),
	transport.Identity[int16](mysql.Year, arrowdest.Int16),
	transport.Lossy(mysql.JSON, arrowdest.LargeUtf8, compactJSON),
)

// MemoryArrow moves in-memory rows into Arrow.
var MemoryArrow = transport.MustNew("memory_arrow", memory.System, arrowdest.System,
	transport.Identity[bool](memory.Bool, arrowdest.Boolean),
	transport.AutoCast[int8, int16](memory.Int8, arrowdest.Int16),
	transport.Identity[int16](memory.Int16, arrowdest.Int16),
	transport.Identity[int32](memory.Int32, arrowdest.Int32),
	transport.Identity[int64](memory.Int64, arrowdest.Int64),
	transport.AutoCast[uint32, int64](memory.UInt32, arrowdest.Int64),
	transport.AutoCast[float32, float64](memory.Float32, arrowdest.Float64),
	transport.Identity[float64](memory.Float64, arrowdest.Float64),
	transport.Identity[string](memory.String, arrowdest.LargeUtf8),
	transport.Owned(memory.Bytes, arrowdest.LargeBinary, ownedBytes),
	transport.Lossy(memory.Timestamp, arrowdest.TimestampTzMicro, timestampMicros),
	transport.Lossy(memory.Date, arrowdest.Date32, date32),
)

// Describe lists the rules of every table, for the CLI.
func Describe() map[string][]string {
	return map[string][]string{
		PostgresArrow.Name(): describe(PostgresArrow.Rules()),
		MySQLArrow.Name():    describe(MySQLArrow.Rules()),
		MemoryArrow.Name():   describe(MemoryArrow.Rules()),
	}
}

func describe[R interface{ String() string }](rules []R) []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.String()
	}
	return out
}
