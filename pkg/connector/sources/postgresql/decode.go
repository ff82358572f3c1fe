package postgresql

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/ajitpratap0/nebula-columnar/pkg/dispatch"
	"github.com/ajitpratap0/nebula-columnar/pkg/nebulaerrors"
)

// cell is one column's scan target. It is reused for every row of a
// partition; value returns the Go value bound to the column tag, or nil for
// NULL.
type cell interface {
	dest() any
	value() (any, error)
}

type scanCell[T any] struct {
	v    T
	conv func(*T) (any, error)
}

func (c *scanCell[T]) dest() any {
	return &c.v
}

func (c *scanCell[T]) value() (any, error) {
	return c.conv(&c.v)
}

type decoder func() cell

func decoderOf[T any](conv func(*T) (any, error)) decoder {
	return func() cell {
		return &scanCell[T]{conv: conv}
	}
}

// valid wraps the pgtype structs that carry a Valid flag.
func valid[T any](get func(*T) (any, bool)) decoder {
	return decoderOf(func(v *T) (any, error) {
		out, ok := get(v)
		if !ok {
			return nil, nil
		}
		return out, nil
	})
}

// view yields the driver's buffer for the cell. The slice is only valid until
// the next row is read.
var view = decoderOf(func(v *pgtype.DriverBytes) (any, error) {
	if *v == nil {
		return nil, nil
	}
	return []byte(*v), nil
})

func sliceOf[E any]() decoder {
	return decoderOf(func(v *[]*E) (any, error) {
		if *v == nil {
			return nil, nil
		}
		return *v, nil
	})
}

var decoders = dispatch.MustNew("postgresql", typeCount, map[Type]decoder{
	Bool:    valid(func(v *pgtype.Bool) (any, bool) { return v.Bool, v.Valid }),
	Int2:    valid(func(v *pgtype.Int2) (any, bool) { return v.Int16, v.Valid }),
	Int4:    valid(func(v *pgtype.Int4) (any, bool) { return v.Int32, v.Valid }),
	Int8:    valid(func(v *pgtype.Int8) (any, bool) { return v.Int64, v.Valid }),
	Float4:  valid(func(v *pgtype.Float4) (any, bool) { return v.Float32, v.Valid }),
	Float8:  valid(func(v *pgtype.Float8) (any, bool) { return v.Float64, v.Valid }),
	Numeric: decoderOf(numericValue),
	Text:    view,
	BpChar:  view,
	VarChar: view,
	Name:    view,
	Enum:    view,
	Char:    view,
	Timestamp: decoderOf(func(v *pgtype.Timestamp) (any, error) {
		return finiteTime(v.Time, v.InfinityModifier, v.Valid)
	}),
	TimestampTz: decoderOf(func(v *pgtype.Timestamptz) (any, error) {
		return finiteTime(v.Time, v.InfinityModifier, v.Valid)
	}),
	Date: decoderOf(func(v *pgtype.Date) (any, error) {
		return finiteTime(v.Time, v.InfinityModifier, v.Valid)
	}),
	Time:         valid(func(v *pgtype.Time) (any, bool) { return *v, v.Valid }),
	UUID:         valid(func(v *pgtype.UUID) (any, bool) { return uuid.UUID(v.Bytes), v.Valid }),
	ByteA:        view,
	JSON:         view,
	JSONB:        view,
	BoolArray:    sliceOf[bool](),
	Int2Array:    sliceOf[int16](),
	Int4Array:    sliceOf[int32](),
	Int8Array:    sliceOf[int64](),
	Float4Array:  sliceOf[float32](),
	Float8Array:  sliceOf[float64](),
	TextArray:    sliceOf[string](),
	VarcharArray: sliceOf[string](),
	NumericArray: decoderOf(func(v *[]pgtype.Numeric) (any, error) {
		if *v == nil {
			return nil, nil
		}
		out := make([]*decimal.Decimal, len(*v))
		for i := range *v {
			d, err := numericValue(&(*v)[i])
			if err != nil {
				return nil, err
			}
			if d != nil {
				dec := d.(decimal.Decimal)
				out[i] = &dec
			}
		}
		return out, nil
	}),
})

func numericValue(n *pgtype.Numeric) (any, error) {
	if !n.Valid {
		return nil, nil
	}
	if n.NaN {
		return nil, nebulaerrors.New(nebulaerrors.ErrorTypeData, "numeric NaN has no decimal representation")
	}
	if n.InfinityModifier != pgtype.Finite {
		return nil, nebulaerrors.New(nebulaerrors.ErrorTypeData, "infinite numeric has no decimal representation")
	}
	if n.Int == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromBigInt(n.Int, n.Exp), nil
}

func finiteTime(t time.Time, inf pgtype.InfinityModifier, ok bool) (any, error) {
	if !ok {
		return nil, nil
	}
	if inf != pgtype.Finite {
		return nil, nebulaerrors.Newf(nebulaerrors.ErrorTypeData, "%s time value is not supported", inf)
	}
	return t, nil
}

// newCells builds the scan targets of a row.
func newCells(types []Type) ([]cell, []any) {
	cells := make([]cell, len(types))
	dests := make([]any, len(types))
	for i, t := range types {
		cells[i] = decoders.Resolve(t)()
		dests[i] = cells[i].dest()
	}
	return cells, dests
}
