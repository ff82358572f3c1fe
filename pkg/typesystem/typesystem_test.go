package typesystem

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/nebula-columnar/pkg/nebulaerrors"
)

type testType uint8

const (
	tInt64 testType = iota
	tFloat64
	tText
	testTypeCount
)

func (t testType) String() string {
	return [...]string{"Int64", "Float64", "Text"}[t]
}

var testSystem = MustSystem("test", testTypeCount, map[testType]Binding{
	tInt64:   Bind[int64](),
	tFloat64: Bind[float64](),
	tText:    Bind[string](),
})

func TestMustSystem_IncompletePanics(t *testing.T) {
	assert.Panics(t, func() {
		MustSystem("broken", testTypeCount, map[testType]Binding{
			tInt64: Bind[int64](),
		})
	})
}

func TestNewSystem_RejectsZeroBinding(t *testing.T) {
	_, err := NewSystem("broken", testTypeCount, map[testType]Binding{
		tInt64:   Bind[int64](),
		tFloat64: {},
		tText:    Bind[string](),
	})
	require.Error(t, err)
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name    string
		col     Column[testType]
		value   any
		wantErr bool
	}{
		{"int64 in int64", NotNull(tInt64), int64(7), false},
		{"float64 in int64", NotNull(tInt64), 7.5, true},
		{"int in int64", NotNull(tInt64), 7, true},
		{"string in text", NotNull(tText), "x", false},
		{"bytes in text", NotNull(tText), []byte("x"), true},
		{"nil in nullable", Nullable(tFloat64), nil, false},
		{"nil in not null", NotNull(tFloat64), nil, true},
		{"unknown tag", NotNull(testType(99)), int64(1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := testSystem.Matches(tt.col, tt.value)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, nebulaerrors.IsType(err, nebulaerrors.ErrorTypeTypeMismatch))
		})
	}
}

func TestMatches_Details(t *testing.T) {
	err := testSystem.Matches(NotNull(tInt64), 1.5)
	require.Error(t, err)

	var e *nebulaerrors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "int64", e.Details["expected"])
	assert.Equal(t, "float64", e.Details["actual"])
}

func TestProperty_MatchesAgreesWithBinding(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	values := gen.OneGenOf(
		gen.Int64().Map(func(v int64) any { return v }),
		gen.Float64().Map(func(v float64) any { return v }),
		gen.AnyString().Map(func(v string) any { return v }),
		gen.Int32().Map(func(v int32) any { return v }),
		gen.Bool().Map(func(v bool) any { return v }),
	)

	properties.Property("Matches succeeds exactly when the native type is bound to the tag", prop.ForAll(
		func(v any, tag uint8) bool {
			col := NotNull(testType(tag))
			err := testSystem.Matches(col, v)

			var want bool
			switch v.(type) {
			case int64:
				want = col.Type == tInt64
			case float64:
				want = col.Type == tFloat64
			case string:
				want = col.Type == tText
			}
			return (err == nil) == want
		},
		values,
		gen.UInt8Range(0, uint8(testTypeCount)-1),
	))

	properties.TestingRun(t)
}

func TestSchema(t *testing.T) {
	s, err := NewSchema([]string{"id", "name"}, []Column[testType]{NotNull(tInt64), Nullable(tText)})
	require.NoError(t, err)

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{"id", "name"}, s.Names())
	assert.Equal(t, "Text?", s.Field(1).Column.String())

	_, err = NewSchema([]string{"id"}, []Column[testType]{})
	assert.True(t, nebulaerrors.IsType(err, nebulaerrors.ErrorTypeValidation))
}

func TestParseDataOrder(t *testing.T) {
	o, err := ParseDataOrder("column_major")
	require.NoError(t, err)
	assert.Equal(t, ColumnMajor, o)

	o, err = ParseDataOrder("")
	require.NoError(t, err)
	assert.Equal(t, RowMajor, o)

	_, err = ParseDataOrder("diagonal")
	assert.True(t, nebulaerrors.IsType(err, nebulaerrors.ErrorTypeConfig))
}
