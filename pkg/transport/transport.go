// Package transport binds a source type system to a destination type system.
// A Transport is one declarative table with a row per source tag: the
// destination tag it maps to, the conversion policy, and the conversion
// function when the policy needs one. Rules are created only through the
// generic constructors in this package, so the function attached to a rule is
// always typed on the native types of its two tags; the table is checked once
// when it is built and read-only afterwards.
package transport

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/ajitpratap0/nebula-columnar/pkg/nebulaerrors"
	"github.com/ajitpratap0/nebula-columnar/pkg/typesystem"
)

// Policy describes how a value crosses from a source tag to a destination tag.
type Policy uint8

const (
	// PolicyIdentity passes the value through; both tags bind the same native type.
	PolicyIdentity Policy = iota
	// PolicyAutoCast is a total, lossless widening; it never fails.
	PolicyAutoCast
	// PolicyFallibleOrLossy is an explicit function that may reject the value
	// or lose precision.
	PolicyFallibleOrLossy
	// PolicyOwningCopy turns a borrowed view into an owned value; it never fails.
	PolicyOwningCopy
)

func (p Policy) String() string {
	switch p {
	case PolicyIdentity:
		return "identity"
	case PolicyAutoCast:
		return "auto_cast"
	case PolicyFallibleOrLossy:
		return "fallible_or_lossy"
	case PolicyOwningCopy:
		return "owning_copy"
	default:
		return "unknown"
	}
}

// Rule is one row of a transport table.
type Rule[S, D typesystem.Tag] struct {
	Src    S
	Dst    D
	Policy Policy

	from    reflect.Type
	to      reflect.Type
	convert func(any) (any, error)
}

func (r Rule[S, D]) String() string {
	return fmt.Sprintf("%s => %s (%s)", r.Src, r.Dst, r.Policy)
}

// Transport is an immutable, validated conversion table.
type Transport[S, D typesystem.Tag] struct {
	name  string
	src   *typesystem.System[S]
	dst   *typesystem.System[D]
	rules []*Rule[S, D] // indexed by source tag; nil when unmapped
	order []Rule[S, D]  // declaration order, for listing
}

// New validates rules against both type systems:
//   - every source tag has at most one rule,
//   - both tags exist in their systems,
//   - the rule function is typed on the native types bound to the tags,
//   - an Identity rule joins two tags bound to the same native type,
//   - an AutoCast rule never loses information.
//
// Source tags without a rule are allowed; using one in a schema fails with
// unsupported_mapping when the schema is mapped.
func New[S, D typesystem.Tag](name string, src *typesystem.System[S], dst *typesystem.System[D], rules ...Rule[S, D]) (*Transport[S, D], error) {
	t := &Transport[S, D]{
		name:  name,
		src:   src,
		dst:   dst,
		rules: make([]*Rule[S, D], len(src.Tags())),
		order: make([]Rule[S, D], 0, len(rules)),
	}

	for i := range rules {
		r := rules[i]

		sb, ok := src.Binding(r.Src)
		if !ok {
			return nil, buildError(name, r, "source tag is not part of the %s type system", src.Name())
		}
		db, ok := dst.Binding(r.Dst)
		if !ok {
			return nil, buildError(name, r, "destination tag is not part of the %s type system", dst.Name())
		}
		if t.rules[r.Src] != nil {
			return nil, buildError(name, r, "source tag already mapped by %s", t.rules[r.Src])
		}
		if r.from != sb.Native() {
			return nil, buildError(name, r, "rule reads %v but %s binds %v", r.from, r.Src, sb.Native())
		}
		if r.to != db.Native() {
			return nil, buildError(name, r, "rule produces %v but %s binds %v", r.to, r.Dst, db.Native())
		}
		if r.Policy == PolicyIdentity && sb.Native() != db.Native() {
			return nil, buildError(name, r, "identity between different native types %v and %v", sb.Native(), db.Native())
		}
		if r.Policy == PolicyAutoCast && !widens(r.from, r.to) {
			return nil, buildError(name, r, "%v does not widen losslessly to %v", r.from, r.to)
		}

		t.order = append(t.order, r)
		t.rules[r.Src] = &t.order[len(t.order)-1]
	}

	return t, nil
}

// MustNew is New for package-level transport tables.
func MustNew[S, D typesystem.Tag](name string, src *typesystem.System[S], dst *typesystem.System[D], rules ...Rule[S, D]) *Transport[S, D] {
	t, err := New(name, src, dst, rules...)
	if err != nil {
		panic(err)
	}
	return t
}

func buildError[S, D typesystem.Tag](name string, r Rule[S, D], format string, args ...any) error {
	return nebulaerrors.Newf(nebulaerrors.ErrorTypeInternal, "transport %s: rule %s: %s",
		name, r, fmt.Sprintf(format, args...))
}

// Name returns the transport name.
func (t *Transport[S, D]) Name() string {
	return t.name
}

// Source returns the source type system.
func (t *Transport[S, D]) Source() *typesystem.System[S] {
	return t.src
}

// Destination returns the destination type system.
func (t *Transport[S, D]) Destination() *typesystem.System[D] {
	return t.dst
}

// Rules returns the rules in declaration order.
func (t *Transport[S, D]) Rules() []Rule[S, D] {
	out := make([]Rule[S, D], len(t.order))
	copy(out, t.order)
	return out
}

// Rule returns the rule for a source tag.
func (t *Transport[S, D]) Rule(s S) (Rule[S, D], bool) {
	if int(s) >= len(t.rules) || t.rules[s] == nil {
		return Rule[S, D]{}, false
	}
	return *t.rules[s], true
}

// Map returns the destination column for a source column. Nullability is
// carried over unchanged.
func (t *Transport[S, D]) Map(col typesystem.Column[S]) (typesystem.Column[D], error) {
	r, ok := t.Rule(col.Type)
	if !ok {
		return typesystem.Column[D]{}, nebulaerrors.Newf(nebulaerrors.ErrorTypeUnsupportedMapping,
			"transport %s has no rule for %s type %s", t.name, t.src.Name(), col.Type).
			WithDetail("source_type", col.Type.String())
	}
	return typesystem.Column[D]{Type: r.Dst, Nullable: col.Nullable}, nil
}

// MapSchema maps a whole source schema. It runs before the destination is
// allocated, so a missing rule aborts the transfer before any row is read.
func (t *Transport[S, D]) MapSchema(src typesystem.Schema[S]) (typesystem.Schema[D], error) {
	cols := make([]typesystem.Column[D], src.Len())
	for i := 0; i < src.Len(); i++ {
		f := src.Field(i)
		c, err := t.Map(f.Column)
		if err != nil {
			var e *nebulaerrors.Error
			if errors.As(err, &e) {
				e.WithDetail("column", f.Name)
			}
			return typesystem.Schema[D]{}, err
		}
		cols[i] = c
	}
	return typesystem.NewSchema(src.Names(), cols)
}

// Convert converts v read from a column of source type s into the native
// value of the mapped destination type. nil passes through untouched.
func (t *Transport[S, D]) Convert(s S, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	r, ok := t.Rule(s)
	if !ok {
		return nil, nebulaerrors.Newf(nebulaerrors.ErrorTypeUnsupportedMapping,
			"transport %s has no rule for %s type %s", t.name, t.src.Name(), s)
	}
	if r.Policy == PolicyIdentity {
		return v, nil
	}
	return r.convert(v)
}

// Converter returns the conversion function for source type s, resolved
// once so that per-cell conversion is a direct call.
func (t *Transport[S, D]) Converter(s S) (func(any) (any, error), error) {
	r, ok := t.Rule(s)
	if !ok {
		return nil, nebulaerrors.Newf(nebulaerrors.ErrorTypeUnsupportedMapping,
			"transport %s has no rule for %s type %s", t.name, t.src.Name(), s)
	}
	if r.Policy == PolicyIdentity {
		return passThrough, nil
	}
	convert := r.convert
	return func(v any) (any, error) {
		if v == nil {
			return nil, nil
		}
		return convert(v)
	}, nil
}

func passThrough(v any) (any, error) {
	return v, nil
}
