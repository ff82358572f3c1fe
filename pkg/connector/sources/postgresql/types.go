package postgresql

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/ajitpratap0/nebula-columnar/pkg/typesystem"
)

// Type is the PostgreSQL source type system.
type Type uint8

const (
	Bool Type = iota
	Int2
	Int4
	Int8
	Float4
	Float8
	Numeric
	Text
	BpChar
	VarChar
	Name
	Enum
	Char
	Timestamp
	TimestampTz
	Date
	Time
	UUID
	ByteA
	JSON
	JSONB
	BoolArray
	Int2Array
	Int4Array
	Int8Array
	Float4Array
	Float8Array
	TextArray
	VarcharArray
	NumericArray
	typeCount
)

var typeNames = [...]string{
	Bool:         "Bool",
	Int2:         "Int2",
	Int4:         "Int4",
	Int8:         "Int8",
	Float4:       "Float4",
	Float8:       "Float8",
	Numeric:      "Numeric",
	Text:         "Text",
	BpChar:       "BpChar",
	VarChar:      "VarChar",
	Name:         "Name",
	Enum:         "Enum",
	Char:         "Char",
	Timestamp:    "Timestamp",
	TimestampTz:  "TimestampTz",
	Date:         "Date",
	Time:         "Time",
	UUID:         "UUID",
	ByteA:        "ByteA",
	JSON:         "JSON",
	JSONB:        "JSONB",
	BoolArray:    "BoolArray",
	Int2Array:    "Int2Array",
	Int4Array:    "Int4Array",
	Int8Array:    "Int8Array",
	Float4Array:  "Float4Array",
	Float8Array:  "Float8Array",
	TextArray:    "TextArray",
	VarcharArray: "VarcharArray",
	NumericArray: "NumericArray",
}

func (t Type) String() string {
	if t < typeCount {
		return typeNames[t]
	}
	return "Unknown"
}

// System binds each PostgreSQL tag to the Go value a partition yields for
// it. Character, bytea and json cells are []byte views of the row buffer.
var System = typesystem.MustSystem("postgresql", typeCount, map[Type]typesystem.Binding{
	Bool:         typesystem.Bind[bool](),
	Int2:         typesystem.Bind[int16](),
	Int4:         typesystem.Bind[int32](),
	Int8:         typesystem.Bind[int64](),
	Float4:       typesystem.Bind[float32](),
	Float8:       typesystem.Bind[float64](),
	Numeric:      typesystem.Bind[decimal.Decimal](),
	Text:         typesystem.Bind[[]byte](),
	BpChar:       typesystem.Bind[[]byte](),
	VarChar:      typesystem.Bind[[]byte](),
	Name:         typesystem.Bind[[]byte](),
	Enum:         typesystem.Bind[[]byte](),
	Char:         typesystem.Bind[[]byte](),
	Timestamp:    typesystem.Bind[time.Time](),
	TimestampTz:  typesystem.Bind[time.Time](),
	Date:         typesystem.Bind[time.Time](),
	Time:         typesystem.Bind[pgtype.Time](),
	UUID:         typesystem.Bind[uuid.UUID](),
	ByteA:        typesystem.Bind[[]byte](),
	JSON:         typesystem.Bind[[]byte](),
	JSONB:        typesystem.Bind[[]byte](),
	BoolArray:    typesystem.Bind[[]*bool](),
	Int2Array:    typesystem.Bind[[]*int16](),
	Int4Array:    typesystem.Bind[[]*int32](),
	Int8Array:    typesystem.Bind[[]*int64](),
	Float4Array:  typesystem.Bind[[]*float32](),
	Float8Array:  typesystem.Bind[[]*float64](),
	TextArray:    typesystem.Bind[[]*string](),
	VarcharArray: typesystem.Bind[[]*string](),
	NumericArray: typesystem.Bind[[]*decimal.Decimal](),
})

var oidTypes = map[uint32]Type{
	pgtype.BoolOID:         Bool,
	pgtype.Int2OID:         Int2,
	pgtype.Int4OID:         Int4,
	pgtype.Int8OID:         Int8,
	pgtype.Float4OID:       Float4,
	pgtype.Float8OID:       Float8,
	pgtype.NumericOID:      Numeric,
	pgtype.TextOID:         Text,
	pgtype.BPCharOID:       BpChar,
	pgtype.VarcharOID:      VarChar,
	pgtype.NameOID:         Name,
	pgtype.QCharOID:        Char,
	pgtype.TimestampOID:    Timestamp,
	pgtype.TimestamptzOID:  TimestampTz,
	pgtype.DateOID:         Date,
	pgtype.TimeOID:         Time,
	pgtype.UUIDOID:         UUID,
	pgtype.ByteaOID:        ByteA,
	pgtype.JSONOID:         JSON,
	pgtype.JSONBOID:        JSONB,
	pgtype.BoolArrayOID:    BoolArray,
	pgtype.Int2ArrayOID:    Int2Array,
	pgtype.Int4ArrayOID:    Int4Array,
	pgtype.Int8ArrayOID:    Int8Array,
	pgtype.Float4ArrayOID:  Float4Array,
	pgtype.Float8ArrayOID:  Float8Array,
	pgtype.TextArrayOID:    TextArray,
	pgtype.VarcharArrayOID: VarcharArray,
	pgtype.NumericArrayOID: NumericArray,
}

// FromOID returns the tag of a built-in type OID. User-defined enum types
// have per-database OIDs and are resolved from pg_type by the source.
func FromOID(oid uint32) (Type, bool) {
	t, ok := oidTypes[oid]
	return t, ok
}
