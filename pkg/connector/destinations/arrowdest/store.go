package arrowdest

import (
	"sync"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/ajitpratap0/nebula-columnar/pkg/nebulaerrors"
)

// batchStore owns every flushed batch until it is drained. Partitions hold a
// storeHandle each; draining is refused while any handle is live.
type batchStore struct {
	mu       sync.Mutex
	batches  []arrow.Record
	handles  int
	poisoned bool // an append panicked while holding mu
	drained  bool
}

func newBatchStore() *batchStore {
	return &batchStore{}
}

type storeHandle struct {
	store    *batchStore
	released atomic.Bool
}

func (s *batchStore) acquire() *storeHandle {
	s.mu.Lock()
	s.handles++
	s.mu.Unlock()
	return &storeHandle{store: s}
}

// append takes ownership of rec. The record is fully built before the lock is
// taken, so the critical section is a single slice append.
func (h *storeHandle) append(rec arrow.Record) error {
	if h.released.Load() {
		return nebulaerrors.New(nebulaerrors.ErrorTypeState, "append through a released batch store handle")
	}
	s := h.store

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.poisoned {
		return nebulaerrors.New(nebulaerrors.ErrorTypeResourceContention,
			"batch store is unusable after a failed append")
	}
	if s.drained {
		return nebulaerrors.New(nebulaerrors.ErrorTypeState, "batch store already drained")
	}

	s.poisoned = true
	s.batches = append(s.batches, rec)
	s.poisoned = false
	return nil
}

// release gives up the handle. It is safe to call more than once.
func (h *storeHandle) release() {
	if !h.released.CompareAndSwap(false, true) {
		return
	}
	h.store.mu.Lock()
	h.store.handles--
	h.store.mu.Unlock()
}

// extractAll hands every batch to the caller. It succeeds at most once.
func (s *batchStore) extractAll() ([]arrow.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.poisoned {
		return nil, nebulaerrors.New(nebulaerrors.ErrorTypeResourceContention,
			"batch store is unusable after a failed append")
	}
	if s.drained {
		return nil, nebulaerrors.New(nebulaerrors.ErrorTypeState, "batch store already drained")
	}
	if s.handles > 0 {
		return nil, nebulaerrors.Newf(nebulaerrors.ErrorTypeResourceStillHeld,
			"%d partition(s) still hold the batch store", s.handles).
			WithDetail("handles", s.handles)
	}

	out := s.batches
	s.batches = nil
	s.drained = true
	return out, nil
}

// discard releases batches that were never drained.
func (s *batchStore) discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.batches {
		rec.Release()
	}
	s.batches = nil
}

func (s *batchStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}
