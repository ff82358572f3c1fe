package arrowdest

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/ajitpratap0/nebula-columnar/pkg/typesystem"
)

// Type is the Arrow destination type system.
type Type uint8

const (
	Boolean Type = iota
	Int16
	Int32
	Int64
	Float32
	Float64
	LargeUtf8
	LargeBinary
	Date32
	Time64Micro
	TimestampMicro
	TimestampTzMicro
	BooleanList
	Int16List
	Int32List
	Int64List
	Float32List
	Float64List
	Utf8List
	typeCount
)

var typeNames = [...]string{
	Boolean:          "Boolean",
	Int16:            "Int16",
	Int32:            "Int32",
	Int64:            "Int64",
	Float32:          "Float32",
	Float64:          "Float64",
	LargeUtf8:        "LargeUtf8",
	LargeBinary:      "LargeBinary",
	Date32:           "Date32",
	Time64Micro:      "Time64Micro",
	TimestampMicro:   "TimestampMicro",
	TimestampTzMicro: "TimestampTzMicro",
	BooleanList:      "BooleanList",
	Int16List:        "Int16List",
	Int32List:        "Int32List",
	Int64List:        "Int64List",
	Float32List:      "Float32List",
	Float64List:      "Float64List",
	Utf8List:         "Utf8List",
}

func (t Type) String() string {
	if t < typeCount {
		return typeNames[t]
	}
	return "Unknown"
}

// System binds each Arrow tag to the Go value a partition writer accepts for
// it. A nil value is a null. List elements are pointers so individual
// elements can be null.
var System = typesystem.MustSystem("arrow", typeCount, map[Type]typesystem.Binding{
	Boolean:          typesystem.Bind[bool](),
	Int16:            typesystem.Bind[int16](),
	Int32:            typesystem.Bind[int32](),
	Int64:            typesystem.Bind[int64](),
	Float32:          typesystem.Bind[float32](),
	Float64:          typesystem.Bind[float64](),
	LargeUtf8:        typesystem.Bind[string](),
	LargeBinary:      typesystem.Bind[[]byte](),
	Date32:           typesystem.Bind[arrow.Date32](),
	Time64Micro:      typesystem.Bind[arrow.Time64](),
	TimestampMicro:   typesystem.Bind[arrow.Timestamp](),
	TimestampTzMicro: typesystem.Bind[arrow.Timestamp](),
	BooleanList:      typesystem.Bind[[]*bool](),
	Int16List:        typesystem.Bind[[]*int16](),
	Int32List:        typesystem.Bind[[]*int32](),
	Int64List:        typesystem.Bind[[]*int64](),
	Float32List:      typesystem.Bind[[]*float32](),
	Float64List:      typesystem.Bind[[]*float64](),
	Utf8List:         typesystem.Bind[[]*string](),
})

// Column is a destination column type.
type Column = typesystem.Column[Type]

// Schema is a destination schema.
type Schema = typesystem.Schema[Type]
