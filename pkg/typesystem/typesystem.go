// Package typesystem defines the closed sets of type tags that describe the two
// sides of a transfer. Each side (a PostgreSQL source, a MySQL source, the
// Arrow destination, ...) declares its own tag type, a uint8 enumeration with
// a trailing count sentinel, and binds every tag to exactly one native Go
// type. The binding is the only per-value safety net of a transfer: a source
// may hand over any Go value for a cell, and Matches rejects it with a
// type_mismatch error when it disagrees with the column's tag.
package typesystem

import (
	"fmt"
	"reflect"

	"github.com/ajitpratap0/nebula-columnar/pkg/dispatch"
	"github.com/ajitpratap0/nebula-columnar/pkg/nebulaerrors"
)

// Tag is the constraint satisfied by every type system's tag type.
type Tag interface {
	dispatch.Ordinal
	fmt.Stringer
}

// Column is the type of one column: its tag plus whether nil values are
// accepted. Columns are small values and are copied freely.
type Column[T Tag] struct {
	Type     T
	Nullable bool
}

// NotNull returns a non-nullable column of type t.
func NotNull[T Tag](t T) Column[T] {
	return Column[T]{Type: t}
}

// Nullable returns a nullable column of type t.
func Nullable[T Tag](t T) Column[T] {
	return Column[T]{Type: t, Nullable: true}
}

func (c Column[T]) String() string {
	if c.Nullable {
		return c.Type.String() + "?"
	}
	return c.Type.String()
}

// Binding ties a tag to its native Go type.
type Binding struct {
	native reflect.Type
	check  func(v any) bool
}

// Bind returns the binding for native type N. The check is a single type
// assertion.
func Bind[N any]() Binding {
	return Binding{
		native: reflect.TypeOf((*N)(nil)).Elem(),
		check: func(v any) bool {
			_, ok := v.(N)
			return ok
		},
	}
}

// Native returns the bound Go type. It is meant for build-time checks such as
// verifying that an identity conversion really is one.
func (b Binding) Native() reflect.Type {
	return b.native
}

// Check reports whether v has the bound native type.
func (b Binding) Check(v any) bool {
	return b.check(v)
}

// Validate implements dispatch.Validator.
func (b Binding) Validate() error {
	if b.native == nil || b.check == nil {
		return fmt.Errorf("binding not created with Bind")
	}
	return nil
}

// System is one side of a transfer: a name and the binding of every tag.
type System[T Tag] struct {
	name     string
	count    T
	bindings *dispatch.Table[T, Binding]
}

// NewSystem builds a type system; every tag in [0, count) needs a binding.
func NewSystem[T Tag](name string, count T, bindings map[T]Binding) (*System[T], error) {
	tb, err := dispatch.New(name, count, bindings)
	if err != nil {
		return nil, err
	}
	return &System[T]{name: name, count: count, bindings: tb}, nil
}

// MustSystem is NewSystem for package-level declarations.
func MustSystem[T Tag](name string, count T, bindings map[T]Binding) *System[T] {
	s, err := NewSystem(name, count, bindings)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the type system name, e.g. "postgresql" or "arrow".
func (s *System[T]) Name() string {
	return s.name
}

// Tags returns every tag of the system in ordinal order.
func (s *System[T]) Tags() []T {
	tags := make([]T, 0, int(s.count))
	for i := 0; i < int(s.count); i++ {
		tags = append(tags, T(i))
	}
	return tags
}

// Binding returns the binding of tag t.
func (s *System[T]) Binding(t T) (Binding, bool) {
	return s.bindings.Lookup(t)
}

// Matches checks v against col. A nil value matches only a nullable column.
// Matches never panics; every disagreement is a type_mismatch error.
func (s *System[T]) Matches(col Column[T], v any) error {
	b, ok := s.bindings.Lookup(col.Type)
	if !ok {
		return nebulaerrors.Newf(nebulaerrors.ErrorTypeTypeMismatch,
			"%s: unknown type tag %d", s.name, uint8(col.Type))
	}

	if v == nil {
		if col.Nullable {
			return nil
		}
		return nebulaerrors.Newf(nebulaerrors.ErrorTypeTypeMismatch,
			"%s: nil value for non-nullable %s column", s.name, col.Type).
			WithDetail("expected", b.native.String())
	}

	if !b.check(v) {
		return nebulaerrors.Newf(nebulaerrors.ErrorTypeTypeMismatch,
			"%s: value of type %T does not match %s column", s.name, v, col.Type).
			WithDetail("expected", b.native.String()).
			WithDetail("actual", fmt.Sprintf("%T", v))
	}
	return nil
}
