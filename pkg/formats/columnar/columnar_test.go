package columnar

import (
	"bytes"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/nebula-columnar/pkg/connector/destinations/arrowdest"
	"github.com/ajitpratap0/nebula-columnar/pkg/nebulaerrors"
	"github.com/ajitpratap0/nebula-columnar/pkg/typesystem"
)

// drained builds two batches through the arrow destination.
func drained(t *testing.T, mem memory.Allocator) (*arrow.Schema, []arrow.Record) {
	t.Helper()

	dest := arrowdest.New(
		arrowdest.WithAllocator(mem),
		arrowdest.WithBatchSize(2),
		arrowdest.WithLogger(zaptest.NewLogger(t)),
	)
	require.NoError(t, dest.AllocateColumns(
		[]string{"id", "name", "at", "tags"},
		[]arrowdest.Column{
			typesystem.NotNull(arrowdest.Int64),
			typesystem.Nullable(arrowdest.LargeUtf8),
			typesystem.Nullable(arrowdest.TimestampTzMicro),
			typesystem.Nullable(arrowdest.Utf8List),
		},
		typesystem.RowMajor,
	))

	writers, err := dest.Partition(1)
	require.NoError(t, err)
	w := writers[0]

	ts, err := arrow.TimestampFromTime(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), arrow.Microsecond)
	require.NoError(t, err)
	tag := "x"
	for i := int64(0); i < 3; i++ {
		require.NoError(t, w.ConsumeRow([]any{i, "n", ts, []*string{&tag, nil}}))
	}
	require.NoError(t, w.ConsumeRow([]any{int64(3), nil, nil, nil}))
	require.NoError(t, w.Finalize())
	require.NoError(t, w.Close())

	recs, err := dest.Drain()
	require.NoError(t, err)
	return dest.ArrowSchema(), recs
}

func TestWriteAll_RoundTrip(t *testing.T) {
	tests := []struct {
		format      Format
		compression string
	}{
		{Arrow, "none"},
		{Arrow, "lz4"},
		{Arrow, "zstd"},
		{ArrowStream, ""},
		{ArrowStream, "zstd"},
		{Parquet, "snappy"},
		{Parquet, "zstd"},
		{Parquet, "gzip"},
		{Parquet, "none"},
	}

	for _, tt := range tests {
		t.Run(string(tt.format)+"/"+tt.compression, func(t *testing.T) {
			mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
			defer mem.AssertSize(t, 0)

			schema, recs := drained(t, mem)
			defer releaseAll(recs)

			var buf bytes.Buffer
			n, err := WriteAll(&buf, schema, recs, &WriterConfig{
				Format:      tt.format,
				Compression: tt.compression,
				Allocator:   mem,
			})
			require.NoError(t, err)
			assert.Equal(t, int64(buf.Len()), n)

			gotSchema, got, err := ReadAll(bytes.NewReader(buf.Bytes()), tt.format, mem)
			require.NoError(t, err)
			defer releaseAll(got)

			require.Equal(t, schema.NumFields(), gotSchema.NumFields())
			for i, f := range schema.Fields() {
				assert.Equal(t, f.Name, gotSchema.Field(i).Name)
				assert.True(t, arrow.TypeEqual(f.Type, gotSchema.Field(i).Type), "%s vs %s", f.Type, gotSchema.Field(i).Type)
			}

			want := array.NewTableFromRecords(schema, recs)
			defer want.Release()
			have := array.NewTableFromRecords(gotSchema, got)
			defer have.Release()
			require.Equal(t, want.NumRows(), have.NumRows())
			for i := 0; i < int(want.NumCols()); i++ {
				assert.True(t, array.ChunkedEqual(want.Column(i).Data(), have.Column(i).Data()), schema.Field(i).Name)
			}
		})
	}
}

func TestNewWriter_Errors(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{{Name: "a", Type: arrow.PrimitiveTypes.Int64}}, nil)

	_, err := NewWriter(&bytes.Buffer{}, nil, nil)
	assert.True(t, nebulaerrors.IsType(err, nebulaerrors.ErrorTypeConfig))

	_, err = NewWriter(&bytes.Buffer{}, schema, &WriterConfig{Format: "orc"})
	assert.True(t, nebulaerrors.IsType(err, nebulaerrors.ErrorTypeConfig))

	_, err = NewWriter(&bytes.Buffer{}, schema, &WriterConfig{Format: Arrow, Compression: "snappy"})
	assert.True(t, nebulaerrors.IsType(err, nebulaerrors.ErrorTypeConfig))

	_, err = NewWriter(&bytes.Buffer{}, schema, &WriterConfig{Format: Parquet, Compression: "lzo"})
	assert.True(t, nebulaerrors.IsType(err, nebulaerrors.ErrorTypeConfig))
}

func TestWriter_RejectsForeignSchema(t *testing.T) {
	mem := memory.NewGoAllocator()
	schema, recs := drained(t, mem)
	defer releaseAll(recs)

	other := arrow.NewSchema([]arrow.Field{{Name: "a", Type: arrow.PrimitiveTypes.Int64}}, nil)
	w, err := NewWriter(&bytes.Buffer{}, other, &WriterConfig{Format: Arrow, Allocator: mem})
	require.NoError(t, err)
	defer w.Close()

	err = w.Write(recs[0])
	assert.True(t, nebulaerrors.IsType(err, nebulaerrors.ErrorTypeData))
	assert.Equal(t, int64(0), w.RowsWritten())
	assert.NotNil(t, schema)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{
		"parquet": Parquet,
		"IPC":     Arrow,
		"feather": Arrow,
		"stream":  ArrowStream,
	} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseFormat("csv")
	assert.Error(t, err)
}

func TestGetFormatInfo(t *testing.T) {
	assert.Equal(t, ".parquet", GetFormatInfo(Parquet).FileExtension)
	assert.Equal(t, ".arrows", GetFormatInfo(ArrowStream).FileExtension)
	assert.Nil(t, GetFormatInfo("orc"))
}
