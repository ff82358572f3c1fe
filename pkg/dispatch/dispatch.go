// Package dispatch resolves a runtime type tag to the operation registered for
// it. A Table is a dense slice of functor values indexed by tag ordinal: it is
// built once, checked for exhaustiveness when it is built, and resolved with a
// single bounds-checked index afterwards. There is no map lookup and no
// reflection on the hot path.
//
// Type systems declare their tables as package-level variables built with
// MustNew, so a tag without an entry stops the program during package
// initialization (and fails the package tests) instead of surfacing on the
// first row that uses it.
//
//	var functors = dispatch.MustNew("arrow", typeCount, map[Type]Functors{
//		Boolean: primitive(...),
//		Int64:   primitive(...),
//		...
//	})
//
//	f := functors.Resolve(col.Type)
//	b := f.NewBuilder(mem, capacity)
package dispatch

import (
	"fmt"
	"reflect"

	"github.com/ajitpratap0/nebula-columnar/pkg/nebulaerrors"
)

// Ordinal is satisfied by every tag type: a closed enumeration numbered from
// zero with a trailing count sentinel.
type Ordinal interface {
	~uint8
}

// Validator may be implemented by functor types that have several parts, so a
// partially filled entry is rejected at build time as well.
type Validator interface {
	Validate() error
}

// Table maps every tag of one type system to one functor value.
type Table[T Ordinal, F any] struct {
	name    string
	entries []F
}

// New builds a table for tags [0, count). Every tag must have exactly one
// non-zero entry; keys outside the range are rejected.
func New[T Ordinal, F any](name string, count T, entries map[T]F) (*Table[T, F], error) {
	tb := &Table[T, F]{
		name:    name,
		entries: make([]F, int(count)),
	}

	for tag, f := range entries {
		if tag >= count {
			return nil, nebulaerrors.Newf(nebulaerrors.ErrorTypeInternal,
				"dispatch table %s: tag %v is outside the type system (count %d)", name, tag, count)
		}
		tb.entries[tag] = f
	}

	for i := range tb.entries {
		tag := T(i)
		if isZero(tb.entries[i]) {
			return nil, nebulaerrors.Newf(nebulaerrors.ErrorTypeInternal,
				"dispatch table %s: no entry for tag %s", name, describe(tag)).
				WithDetail("ordinal", i)
		}
		if v, ok := any(tb.entries[i]).(Validator); ok {
			if err := v.Validate(); err != nil {
				return nil, nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeInternal,
					fmt.Sprintf("dispatch table %s: invalid entry for tag %s", name, describe(tag)))
			}
		}
	}

	return tb, nil
}

// MustNew is New for package-level tables; it panics on an incomplete table.
func MustNew[T Ordinal, F any](name string, count T, entries map[T]F) *Table[T, F] {
	tb, err := New(name, count, entries)
	if err != nil {
		panic(err)
	}
	return tb
}

// Name returns the table name.
func (tb *Table[T, F]) Name() string {
	return tb.name
}

// Len returns the number of tags covered.
func (tb *Table[T, F]) Len() int {
	return len(tb.entries)
}

// Resolve returns the functor for tag. Tags are a closed set, so resolving a
// forged out-of-range tag panics like any slice index.
func (tb *Table[T, F]) Resolve(tag T) F {
	return tb.entries[tag]
}

// Lookup is Resolve for callers that must not panic on a forged tag.
func (tb *Table[T, F]) Lookup(tag T) (F, bool) {
	if int(tag) >= len(tb.entries) {
		var zero F
		return zero, false
	}
	return tb.entries[tag], true
}

// isZero is only used while building a table.
func isZero[F any](f F) bool {
	v := reflect.ValueOf(&f).Elem()
	return v.IsZero()
}

func describe[T Ordinal](tag T) string {
	if s, ok := any(tag).(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%d", uint8(tag))
}
