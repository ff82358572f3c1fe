package arrowdest

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFunctors_EveryTagResolves(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	for _, tag := range System.Tags() {
		t.Run(tag.String(), func(t *testing.T) {
			f := Resolve(tag)
			require.NoError(t, f.Validate())

			b := f.NewBuilder(mem, 4)
			defer b.Release()
			require.NoError(t, f.Append(b, nil))

			arr := f.Finish(b)
			defer arr.Release()
			assert.Equal(t, 1, arr.Len())
			assert.True(t, arrow.TypeEqual(f.DataType, arr.DataType()), "%s vs %s", f.DataType, arr.DataType())

			field := f.NewField("c", true)
			assert.Equal(t, "c", field.Name)
			assert.True(t, field.Nullable)
		})
	}
}

func TestFunctors_AppendRejectsWrongNative(t *testing.T) {
	f := Resolve(Int64)
	b := f.NewBuilder(memory.NewGoAllocator(), 1)
	defer b.Release()

	assert.Error(t, f.Append(b, int32(1)))
	assert.Equal(t, 0, b.Len())

	lf := Resolve(Utf8List)
	lb := lf.NewBuilder(memory.NewGoAllocator(), 1)
	defer lb.Release()
	assert.Error(t, lf.Append(lb, []string{"x"}))
}

func TestType_String(t *testing.T) {
	assert.Equal(t, "TimestampTzMicro", TimestampTzMicro.String())
	assert.Equal(t, "Unknown", Type(200).String())
	assert.Len(t, System.Tags(), int(typeCount))
}
