package arrowdest

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/nebula-columnar/pkg/dispatch"
)

// Functors are the column operations of one Arrow tag. Every field is set
// for every tag; the table below is checked when the package is loaded.
type Functors struct {
	DataType   arrow.DataType
	NewBuilder func(mem memory.Allocator, capacity int) array.Builder
	Append     func(b array.Builder, v any) error
}

// Finish turns a builder into an immutable array and resets the builder.
func (f Functors) Finish(b array.Builder) arrow.Array {
	return b.NewArray()
}

// NewField returns the schema field for a column of this type.
func (f Functors) NewField(name string, nullable bool) arrow.Field {
	return arrow.Field{Name: name, Type: f.DataType, Nullable: nullable}
}

// Validate implements dispatch.Validator.
func (f Functors) Validate() error {
	if f.DataType == nil || f.NewBuilder == nil || f.Append == nil {
		return fmt.Errorf("incomplete functors")
	}
	return nil
}

type appender[N any] interface {
	array.Builder
	Append(N)
}

func primitive[B appender[N], N any](dt arrow.DataType, newBuilder func(memory.Allocator) B) Functors {
	return Functors{
		DataType: dt,
		NewBuilder: func(mem memory.Allocator, capacity int) array.Builder {
			b := newBuilder(mem)
			b.Reserve(capacity)
			return b
		},
		Append: func(b array.Builder, v any) error {
			if v == nil {
				b.AppendNull()
				return nil
			}
			n, ok := v.(N)
			if !ok {
				return fmt.Errorf("%T appended to %s builder", v, dt)
			}
			b.(B).Append(n)
			return nil
		},
	}
}

// listOf builds list functors whose elements are appended through the
// element builder of type B. A nil slice element is a null list element.
func listOf[B appender[N], N any](elem arrow.DataType) Functors {
	return Functors{
		DataType: arrow.ListOf(elem),
		NewBuilder: func(mem memory.Allocator, capacity int) array.Builder {
			b := array.NewListBuilder(mem, elem)
			b.Reserve(capacity)
			return b
		},
		Append: func(b array.Builder, v any) error {
			if v == nil {
				b.AppendNull()
				return nil
			}
			xs, ok := v.([]*N)
			if !ok {
				return fmt.Errorf("%T appended to list<%s> builder", v, elem)
			}
			lb := b.(*array.ListBuilder)
			lb.Append(true)
			vb := lb.ValueBuilder().(B)
			for _, x := range xs {
				if x == nil {
					vb.AppendNull()
					continue
				}
				vb.Append(*x)
			}
			return nil
		},
	}
}

var (
	time64Micro      = &arrow.Time64Type{Unit: arrow.Microsecond}
	timestampMicro   = &arrow.TimestampType{Unit: arrow.Microsecond}
	timestampTzMicro = &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}
)

var functors = dispatch.MustNew("arrow", typeCount, map[Type]Functors{
	Boolean: primitive[*array.BooleanBuilder, bool](arrow.FixedWidthTypes.Boolean, array.NewBooleanBuilder),
	Int16:   primitive[*array.Int16Builder, int16](arrow.PrimitiveTypes.Int16, array.NewInt16Builder),
	Int32:   primitive[*array.Int32Builder, int32](arrow.PrimitiveTypes.Int32, array.NewInt32Builder),
	Int64:   primitive[*array.Int64Builder, int64](arrow.PrimitiveTypes.Int64, array.NewInt64Builder),
	Float32: primitive[*array.Float32Builder, float32](arrow.PrimitiveTypes.Float32, array.NewFloat32Builder),
	Float64: primitive[*array.Float64Builder, float64](arrow.PrimitiveTypes.Float64, array.NewFloat64Builder),
	LargeUtf8: primitive[*array.LargeStringBuilder, string](arrow.BinaryTypes.LargeString,
		array.NewLargeStringBuilder),
	LargeBinary: primitive[*array.BinaryBuilder, []byte](arrow.BinaryTypes.LargeBinary,
		func(mem memory.Allocator) *array.BinaryBuilder {
			return array.NewBinaryBuilder(mem, arrow.BinaryTypes.LargeBinary)
		}),
	Date32: primitive[*array.Date32Builder, arrow.Date32](arrow.FixedWidthTypes.Date32, array.NewDate32Builder),
	Time64Micro: primitive[*array.Time64Builder, arrow.Time64](time64Micro,
		func(mem memory.Allocator) *array.Time64Builder {
			return array.NewTime64Builder(mem, time64Micro)
		}),
	TimestampMicro: primitive[*array.TimestampBuilder, arrow.Timestamp](timestampMicro,
		func(mem memory.Allocator) *array.TimestampBuilder {
			return array.NewTimestampBuilder(mem, timestampMicro)
		}),
	TimestampTzMicro: primitive[*array.TimestampBuilder, arrow.Timestamp](timestampTzMicro,
		func(mem memory.Allocator) *array.TimestampBuilder {
			return array.NewTimestampBuilder(mem, timestampTzMicro)
		}),
	BooleanList: listOf[*array.BooleanBuilder, bool](arrow.FixedWidthTypes.Boolean),
	Int16List:   listOf[*array.Int16Builder, int16](arrow.PrimitiveTypes.Int16),
	Int32List:   listOf[*array.Int32Builder, int32](arrow.PrimitiveTypes.Int32),
	Int64List:   listOf[*array.Int64Builder, int64](arrow.PrimitiveTypes.Int64),
	Float32List: listOf[*array.Float32Builder, float32](arrow.PrimitiveTypes.Float32),
	Float64List: listOf[*array.Float64Builder, float64](arrow.PrimitiveTypes.Float64),
	Utf8List:    listOf[*array.LargeStringBuilder, string](arrow.BinaryTypes.LargeString),
})

// Resolve returns the functors of t.
func Resolve(t Type) Functors {
	return functors.Resolve(t)
}
