package transport

import (
	"errors"
	"fmt"
	"reflect"

	"golang.org/x/exp/constraints"

	"github.com/ajitpratap0/nebula-columnar/pkg/nebulaerrors"
	"github.com/ajitpratap0/nebula-columnar/pkg/typesystem"
)

// Number is the set of native types AutoCast can widen between.
type Number interface {
	constraints.Integer | constraints.Float
}

func typeOf[N any]() reflect.Type {
	return reflect.TypeOf((*N)(nil)).Elem()
}

// Identity maps s to d without touching the value. N is the native type both
// tags bind; New rejects the rule if either tag binds something else.
//
//	transport.Identity[int64](PgInt8, arrowdest.Int64)
func Identity[N any, S, D typesystem.Tag](s S, d D) Rule[S, D] {
	n := typeOf[N]()
	return Rule[S, D]{Src: s, Dst: d, Policy: PolicyIdentity, from: n, to: n}
}

// AutoCast maps s to d with a plain Go numeric conversion. New rejects the
// rule unless every From value is exactly representable as To.
func AutoCast[From, To Number, S, D typesystem.Tag](s S, d D) Rule[S, D] {
	return Rule[S, D]{
		Src:    s,
		Dst:    d,
		Policy: PolicyAutoCast,
		from:   typeOf[From](),
		to:     typeOf[To](),
		convert: func(v any) (any, error) {
			f, ok := v.(From)
			if !ok {
				return nil, inputMismatch[From](s, v)
			}
			return To(f), nil
		},
	}
}

// Lossy maps s to d through fn, which may reject a value or lose precision.
// A rejection is reported as a conversion error carrying the value.
func Lossy[From, To any, S, D typesystem.Tag](s S, d D, fn func(From) (To, error)) Rule[S, D] {
	return Rule[S, D]{
		Src:    s,
		Dst:    d,
		Policy: PolicyFallibleOrLossy,
		from:   typeOf[From](),
		to:     typeOf[To](),
		convert: func(v any) (any, error) {
			f, ok := v.(From)
			if !ok {
				return nil, inputMismatch[From](s, v)
			}
			out, err := fn(f)
			if err != nil {
				return nil, conversionError(s, d, v, err)
			}
			return out, nil
		},
	}
}

// Owned maps s to d by copying a borrowed view into an owned value. fn must
// not retain its argument.
func Owned[From, To any, S, D typesystem.Tag](s S, d D, fn func(From) To) Rule[S, D] {
	return Rule[S, D]{
		Src:    s,
		Dst:    d,
		Policy: PolicyOwningCopy,
		from:   typeOf[From](),
		to:     typeOf[To](),
		convert: func(v any) (any, error) {
			f, ok := v.(From)
			if !ok {
				return nil, inputMismatch[From](s, v)
			}
			return fn(f), nil
		},
	}
}

func inputMismatch[From any, S typesystem.Tag](s S, v any) error {
	return nebulaerrors.Newf(nebulaerrors.ErrorTypeTypeMismatch,
		"value of type %T read for %s column, expected %v", v, s, typeOf[From]()).
		WithDetail("expected", typeOf[From]().String()).
		WithDetail("actual", fmt.Sprintf("%T", v))
}

func conversionError[S, D typesystem.Tag](s S, d D, v any, cause error) error {
	var e *nebulaerrors.Error
	if errors.As(cause, &e) && e.Type == nebulaerrors.ErrorTypeConversion {
		if _, ok := e.Detail("value"); !ok {
			e.WithDetail("value", fmt.Sprint(v))
		}
		return e
	}
	return nebulaerrors.Wrap(cause, nebulaerrors.ErrorTypeConversion,
		fmt.Sprintf("cannot convert %s value to %s", s, d)).
		WithDetail("value", fmt.Sprint(v)).
		WithDetail("from", s.String()).
		WithDetail("to", d.String())
}

// widens reports whether every value of from is exactly representable in to.
func widens(from, to reflect.Type) bool {
	fk, tk := from.Kind(), to.Kind()
	fs, ts := from.Size(), to.Size()

	switch {
	case isSigned(fk) && isSigned(tk):
		return ts >= fs
	case isUnsigned(fk) && isUnsigned(tk):
		return ts >= fs
	case isUnsigned(fk) && isSigned(tk):
		return ts > fs
	case (isSigned(fk) || isUnsigned(fk)) && isFloat(tk):
		return mantissaBits(tk) >= int(fs*8)
	case isFloat(fk) && isFloat(tk):
		return ts >= fs
	default:
		return false
	}
}

func isSigned(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUnsigned(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

func mantissaBits(k reflect.Kind) int {
	if k == reflect.Float32 {
		return 24
	}
	return 53
}
