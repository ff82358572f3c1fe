package arrowdest

import (
	"sync"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/nebula-columnar/pkg/nebulaerrors"
)

func oneRowRecord(mem memory.Allocator, v int64) arrow.Record {
	schema := arrow.NewSchema([]arrow.Field{{Name: "v", Type: arrow.PrimitiveTypes.Int64}}, nil)
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()
	b.Field(0).(*array.Int64Builder).Append(v)
	return b.NewRecord()
}

func TestBatchStore_ConcurrentAppend(t *testing.T) {
	mem := memory.NewGoAllocator()
	s := newBatchStore()

	const workers, perWorker = 8, 50
	handles := make([]*storeHandle, workers)
	for i := range handles {
		handles[i] = s.acquire()
	}

	var wg sync.WaitGroup
	for i, h := range handles {
		wg.Add(1)
		go func(i int, h *storeHandle) {
			defer wg.Done()
			defer h.release()
			for j := 0; j < perWorker; j++ {
				assert.NoError(t, h.append(oneRowRecord(mem, int64(i*perWorker+j))))
			}
		}(i, h)
	}
	wg.Wait()

	batches, err := s.extractAll()
	require.NoError(t, err)
	assert.Len(t, batches, workers*perWorker)
	releaseAll(batches)
}

func TestBatchStore_Poisoned(t *testing.T) {
	s := newBatchStore()
	h := s.acquire()
	h.release()

	s.poisoned = true

	rec := oneRowRecord(memory.NewGoAllocator(), 1)
	defer rec.Release()

	err := s.acquire().append(rec)
	assert.True(t, nebulaerrors.IsType(err, nebulaerrors.ErrorTypeResourceContention))

	_, err = s.extractAll()
	assert.True(t, nebulaerrors.IsType(err, nebulaerrors.ErrorTypeResourceContention))
}

func TestBatchStore_AppendAfterDrain(t *testing.T) {
	s := newBatchStore()
	_, err := s.extractAll()
	require.NoError(t, err)

	rec := oneRowRecord(memory.NewGoAllocator(), 1)
	defer rec.Release()

	h := s.acquire()
	err = h.append(rec)
	assert.True(t, nebulaerrors.IsType(err, nebulaerrors.ErrorTypeState))

	h.release()
	err = h.append(rec)
	assert.True(t, nebulaerrors.IsType(err, nebulaerrors.ErrorTypeState))
}

func TestBatchStore_ReleaseIsIdempotent(t *testing.T) {
	s := newBatchStore()
	h1, h2 := s.acquire(), s.acquire()

	h1.release()
	h1.release()

	_, err := s.extractAll()
	assert.True(t, nebulaerrors.IsType(err, nebulaerrors.ErrorTypeResourceStillHeld))

	h2.release()
	_, err = s.extractAll()
	assert.NoError(t, err)
}

func TestBatchStore_Discard(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	s := newBatchStore()
	h := s.acquire()
	require.NoError(t, h.append(oneRowRecord(mem, 1)))
	h.release()

	assert.Equal(t, 1, s.count())
	s.discard()
	assert.Equal(t, 0, s.count())
}
