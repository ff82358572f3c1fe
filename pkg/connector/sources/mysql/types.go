package mysql

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ajitpratap0/nebula-columnar/pkg/typesystem"
)

// Type is the MySQL source type system.
type Type uint8

const (
	Tiny Type = iota
	Short
	Int24
	Long
	LongLong
	UInt32
	UInt64
	Float
	Double
	Decimal
	VarChar
	Char
	Text
	Enum
	Blob
	Date
	Datetime
	Timestamp
	Time
	Year
	JSON
	typeCount
)

var typeNames = [...]string{
	Tiny:      "Tiny",
	Short:     "Short",
	Int24:     "Int24",
	Long:      "Long",
	LongLong:  "LongLong",
	UInt32:    "UInt32",
	UInt64:    "UInt64",
	Float:     "Float",
	Double:    "Double",
	Decimal:   "Decimal",
	VarChar:   "VarChar",
	Char:      "Char",
	Text:      "Text",
	Enum:      "Enum",
	Blob:      "Blob",
	Date:      "Date",
	Datetime:  "Datetime",
	Timestamp: "Timestamp",
	Time:      "Time",
	Year:      "Year",
	JSON:      "JSON",
}

func (t Type) String() string {
	if t < typeCount {
		return typeNames[t]
	}
	return "Unknown"
}

// System binds each MySQL tag to the Go value a partition yields for it.
// Character, blob and json cells are []byte views of the driver's row buffer.
var System = typesystem.MustSystem("mysql", typeCount, map[Type]typesystem.Binding{
	Tiny:      typesystem.Bind[int8](),
	Short:     typesystem.Bind[int16](),
	Int24:     typesystem.Bind[int32](),
	Long:      typesystem.Bind[int32](),
	LongLong:  typesystem.Bind[int64](),
	UInt32:    typesystem.Bind[uint32](),
	UInt64:    typesystem.Bind[uint64](),
	Float:     typesystem.Bind[float32](),
	Double:    typesystem.Bind[float64](),
	Decimal:   typesystem.Bind[decimal.Decimal](),
	VarChar:   typesystem.Bind[[]byte](),
	Char:      typesystem.Bind[[]byte](),
	Text:      typesystem.Bind[[]byte](),
	Enum:      typesystem.Bind[[]byte](),
	Blob:      typesystem.Bind[[]byte](),
	Date:      typesystem.Bind[time.Time](),
	Datetime:  typesystem.Bind[time.Time](),
	Timestamp: typesystem.Bind[time.Time](),
	Time:      typesystem.Bind[time.Duration](),
	Year:      typesystem.Bind[int16](),
	JSON:      typesystem.Bind[[]byte](),
})

// Unsigned columns take the narrowest signed or unsigned tag that holds
// their whole range.
var databaseTypes = map[string]Type{
	"TINYINT":            Tiny,
	"UNSIGNED TINYINT":   Short,
	"SMALLINT":           Short,
	"UNSIGNED SMALLINT":  Long,
	"MEDIUMINT":          Int24,
	"UNSIGNED MEDIUMINT": Long,
	"INT":                Long,
	"UNSIGNED INT":       UInt32,
	"BIGINT":             LongLong,
	"UNSIGNED BIGINT":    UInt64,
	"FLOAT":              Float,
	"DOUBLE":             Double,
	"DECIMAL":            Decimal,
	"VARCHAR":            VarChar,
	"CHAR":               Char,
	"TINYTEXT":           Text,
	"TEXT":               Text,
	"MEDIUMTEXT":         Text,
	"LONGTEXT":           Text,
	"ENUM":               Enum,
	"SET":                Text,
	"BINARY":             Blob,
	"VARBINARY":          Blob,
	"TINYBLOB":           Blob,
	"BLOB":               Blob,
	"MEDIUMBLOB":         Blob,
	"LONGBLOB":           Blob,
	"DATE":               Date,
	"DATETIME":           Datetime,
	"TIMESTAMP":          Timestamp,
	"TIME":               Time,
	"YEAR":               Year,
	"JSON":               JSON,
}

// FromDatabaseTypeName maps a driver column type name, as reported by
// sql.ColumnType.DatabaseTypeName, to its tag.
func FromDatabaseTypeName(name string) (Type, bool) {
	t, ok := databaseTypes[strings.ToUpper(strings.TrimSpace(name))]
	return t, ok
}
