package postgresql

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/nebula-columnar/pkg/nebulaerrors"
	"github.com/ajitpratap0/nebula-columnar/pkg/typesystem"
)

func TestNewPostgreSQLSource_Validation(t *testing.T) {
	log := zaptest.NewLogger(t)

	_, err := NewPostgreSQLSource(Config{Queries: []string{"SELECT 1"}}, log)
	assert.True(t, nebulaerrors.IsType(err, nebulaerrors.ErrorTypeConfig))

	_, err = NewPostgreSQLSource(Config{DSN: "postgres://localhost/db"}, log)
	assert.True(t, nebulaerrors.IsType(err, nebulaerrors.ErrorTypeConfig))

	src, err := NewPostgreSQLSource(Config{DSN: "postgres://localhost/db", Queries: []string{"a", "b"}}, log)
	require.NoError(t, err)
	assert.Equal(t, SourceName, src.Name())
	assert.Len(t, src.Partitions(), 2)
}

func TestPartition_ReadBeforePrepare(t *testing.T) {
	src, err := NewPostgreSQLSource(Config{DSN: "postgres://localhost/db", Queries: []string{"SELECT 1"}}, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = src.Partitions()[0].ReadRow(context.Background())
	assert.True(t, nebulaerrors.IsType(err, nebulaerrors.ErrorTypeState))
}

func TestFromOID(t *testing.T) {
	tests := []struct {
		oid  uint32
		want Type
	}{
		{pgtype.Int8OID, Int8},
		{pgtype.NumericOID, Numeric},
		{pgtype.TimestamptzOID, TimestampTz},
		{pgtype.JSONBOID, JSONB},
		{pgtype.VarcharArrayOID, VarcharArray},
		{pgtype.QCharOID, Char},
	}
	for _, tt := range tests {
		got, ok := FromOID(tt.oid)
		require.True(t, ok, "oid %d", tt.oid)
		assert.Equal(t, tt.want, got)
	}

	_, ok := FromOID(pgtype.PointOID)
	assert.False(t, ok)
}

func TestFromOID_CoversEveryTagButEnum(t *testing.T) {
	seen := make(map[Type]bool)
	for _, tag := range oidTypes {
		seen[tag] = true
	}
	for _, tag := range System.Tags() {
		if tag == Enum {
			continue
		}
		assert.True(t, seen[tag], "%s has no oid", tag)
	}
}

func TestDecoders_NullCells(t *testing.T) {
	cells, dests := newCells(System.Tags())
	require.Len(t, dests, int(typeCount))

	for i, c := range cells {
		v, err := c.value()
		require.NoError(t, err, Type(i).String())
		assert.Nil(t, v, Type(i).String())
	}
}

func TestDecoders_ValuesMatchSystem(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	id := uuid.New()
	one := int32(1)

	fill := map[Type]func(dest any){
		Bool:        func(d any) { *d.(*pgtype.Bool) = pgtype.Bool{Bool: true, Valid: true} },
		Int2:        func(d any) { *d.(*pgtype.Int2) = pgtype.Int2{Int16: 2, Valid: true} },
		Int4:        func(d any) { *d.(*pgtype.Int4) = pgtype.Int4{Int32: 4, Valid: true} },
		Int8:        func(d any) { *d.(*pgtype.Int8) = pgtype.Int8{Int64: 8, Valid: true} },
		Float4:      func(d any) { *d.(*pgtype.Float4) = pgtype.Float4{Float32: 1.5, Valid: true} },
		Float8:      func(d any) { *d.(*pgtype.Float8) = pgtype.Float8{Float64: 2.5, Valid: true} },
		Numeric:     func(d any) { *d.(*pgtype.Numeric) = pgtype.Numeric{Int: big.NewInt(12345), Exp: -2, Valid: true} },
		Text:        func(d any) { *d.(*pgtype.DriverBytes) = pgtype.DriverBytes("txt") },
		ByteA:       func(d any) { *d.(*pgtype.DriverBytes) = pgtype.DriverBytes{0x01} },
		Timestamp:   func(d any) { *d.(*pgtype.Timestamp) = pgtype.Timestamp{Time: ts, Valid: true} },
		TimestampTz: func(d any) { *d.(*pgtype.Timestamptz) = pgtype.Timestamptz{Time: ts, Valid: true} },
		Date:        func(d any) { *d.(*pgtype.Date) = pgtype.Date{Time: ts, Valid: true} },
		Time:        func(d any) { *d.(*pgtype.Time) = pgtype.Time{Microseconds: 1000, Valid: true} },
		UUID:        func(d any) { *d.(*pgtype.UUID) = pgtype.UUID{Bytes: id, Valid: true} },
		Int4Array:   func(d any) { *d.(*[]*int32) = []*int32{&one, nil} },
		NumericArray: func(d any) {
			*d.(*[]pgtype.Numeric) = []pgtype.Numeric{{Int: big.NewInt(5), Exp: 0, Valid: true}, {}}
		},
	}

	for tag, set := range fill {
		t.Run(tag.String(), func(t *testing.T) {
			cells, dests := newCells([]Type{tag})
			set(dests[0])

			v, err := cells[0].value()
			require.NoError(t, err)
			require.NotNil(t, v)
			assert.NoError(t, System.Matches(typesystem.NotNull(tag), v))
		})
	}
}

func TestDecoders_NumericArrayKeepsNulls(t *testing.T) {
	cells, dests := newCells([]Type{NumericArray})
	*dests[0].(*[]pgtype.Numeric) = []pgtype.Numeric{{Int: big.NewInt(15), Exp: -1, Valid: true}, {}}

	v, err := cells[0].value()
	require.NoError(t, err)
	got := v.([]*decimal.Decimal)
	require.Len(t, got, 2)
	assert.True(t, got[0].Equal(decimal.RequireFromString("1.5")))
	assert.Nil(t, got[1])
}

func TestNumericValue(t *testing.T) {
	v, err := numericValue(&pgtype.Numeric{Int: big.NewInt(-31415), Exp: -4, Valid: true})
	require.NoError(t, err)
	assert.Equal(t, "-3.1415", v.(decimal.Decimal).String())

	v, err = numericValue(&pgtype.Numeric{Valid: true})
	require.NoError(t, err)
	assert.True(t, v.(decimal.Decimal).IsZero())

	_, err = numericValue(&pgtype.Numeric{NaN: true, Valid: true})
	assert.True(t, nebulaerrors.IsType(err, nebulaerrors.ErrorTypeData))

	_, err = numericValue(&pgtype.Numeric{InfinityModifier: pgtype.Infinity, Valid: true})
	assert.True(t, nebulaerrors.IsType(err, nebulaerrors.ErrorTypeData))
}

func TestFiniteTime(t *testing.T) {
	now := time.Now()

	v, err := finiteTime(now, pgtype.Finite, true)
	require.NoError(t, err)
	assert.Equal(t, now, v)

	v, err = finiteTime(now, pgtype.Finite, false)
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = finiteTime(time.Time{}, pgtype.NegativeInfinity, true)
	assert.True(t, nebulaerrors.IsType(err, nebulaerrors.ErrorTypeData))
}

func TestType_String(t *testing.T) {
	assert.Equal(t, "TimestampTz", TimestampTz.String())
	assert.Equal(t, "Unknown", typeCount.String())
}
