package memory

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/nebula-columnar/pkg/nebulaerrors"
	"github.com/ajitpratap0/nebula-columnar/pkg/typesystem"
)

func testSchema(t *testing.T) Schema {
	t.Helper()
	schema, err := typesystem.NewSchema(
		[]string{"id", "name"},
		[]typesystem.Column[Type]{typesystem.NotNull(Int64), typesystem.Nullable(String)},
	)
	require.NoError(t, err)
	return schema
}

func TestSource_ReadsPartitionsInOrder(t *testing.T) {
	ctx := context.Background()
	src := MustSource(testSchema(t),
		Rows{{int64(1), "a"}, {int64(2), nil}},
		Rows{},
		Rows{{int64(3), "c"}},
	)
	require.NoError(t, src.Prepare(ctx))
	assert.Equal(t, SourceName, src.Name())

	parts := src.Partitions()
	require.Len(t, parts, 3)

	var ids []int64
	for _, p := range parts {
		for {
			row, err := p.ReadRow(ctx)
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			ids = append(ids, row[0].(int64))
		}
		require.NoError(t, p.Close())
	}
	assert.Equal(t, []int64{1, 2, 3}, ids)

	require.NoError(t, src.Close(ctx))
	assert.True(t, nebulaerrors.IsType(src.Prepare(ctx), nebulaerrors.ErrorTypeState))
}

func TestSource_RejectsRowWidth(t *testing.T) {
	_, err := NewSource(testSchema(t), Rows{{int64(1)}})
	assert.True(t, nebulaerrors.IsType(err, nebulaerrors.ErrorTypeValidation))

	assert.Panics(t, func() { MustSource(testSchema(t), Rows{{1, 2, 3}}) })
}

func TestSource_KeepsMistypedCells(t *testing.T) {
	src := MustSource(testSchema(t), Rows{{"not an int", "x"}})
	row, err := src.Partitions()[0].ReadRow(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "not an int", row[0])
	err = System.Matches(src.Schema().Field(0).Column, row[0])
	assert.True(t, nebulaerrors.IsType(err, nebulaerrors.ErrorTypeTypeMismatch))
}

func TestPartition_Cancelled(t *testing.T) {
	src := MustSource(testSchema(t), Rows{{int64(1), "a"}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.Partitions()[0].ReadRow(ctx)
	assert.True(t, nebulaerrors.IsType(err, nebulaerrors.ErrorTypeTimeout))
}

func TestPartition_CloseStopsReading(t *testing.T) {
	src := MustSource(testSchema(t), Rows{{int64(1), "a"}, {int64(2), "b"}})
	p := src.Partitions()[0]
	require.NoError(t, p.Close())

	_, err := p.ReadRow(context.Background())
	assert.Equal(t, io.EOF, err)
}

func TestSample(t *testing.T) {
	ctx := context.Background()
	src := Sample(2, 8)
	require.NoError(t, src.Prepare(ctx))

	schema := src.Schema()
	parts := src.Partitions()
	require.Len(t, parts, 2)

	rows := 0
	for _, p := range parts {
		for {
			row, err := p.ReadRow(ctx)
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			for i, col := range schema.Columns() {
				assert.NoError(t, System.Matches(col, row[i]), "row %d column %d", rows, i)
			}
			rows++
		}
	}
	assert.Equal(t, 16, rows)
}
