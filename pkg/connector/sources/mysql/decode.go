package mysql

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ajitpratap0/nebula-columnar/pkg/dispatch"
	"github.com/ajitpratap0/nebula-columnar/pkg/nebulaerrors"
)

// decoder turns one non-NULL text protocol cell into the tag's native value.
type decoder func(raw []byte, loc *time.Location) (any, error)

func signed[N int8 | int16 | int32 | int64](bits int) decoder {
	return func(raw []byte, _ *time.Location) (any, error) {
		n, err := strconv.ParseInt(string(raw), 10, bits)
		if err != nil {
			return nil, err
		}
		return N(n), nil
	}
}

func unsigned[N uint32 | uint64](bits int) decoder {
	return func(raw []byte, _ *time.Location) (any, error) {
		n, err := strconv.ParseUint(string(raw), 10, bits)
		if err != nil {
			return nil, err
		}
		return N(n), nil
	}
}

// view returns the driver buffer itself.
func view(raw []byte, _ *time.Location) (any, error) {
	return raw, nil
}

var zeroDate = []byte("0000-00-00")

func timeOf(layout string) decoder {
	return func(raw []byte, loc *time.Location) (any, error) {
		if bytes.HasPrefix(raw, zeroDate) {
			return nil, nebulaerrors.New(nebulaerrors.ErrorTypeData, "zero date has no calendar representation")
		}
		return time.ParseInLocation(layout, string(raw), loc)
	}
}

var decoders = dispatch.MustNew("mysql", typeCount, map[Type]decoder{
	Tiny:     signed[int8](8),
	Short:    signed[int16](16),
	Int24:    signed[int32](32),
	Long:     signed[int32](32),
	LongLong: signed[int64](64),
	UInt32:   unsigned[uint32](32),
	UInt64:   unsigned[uint64](64),
	Float: func(raw []byte, _ *time.Location) (any, error) {
		f, err := strconv.ParseFloat(string(raw), 32)
		return float32(f), err
	},
	Double: func(raw []byte, _ *time.Location) (any, error) {
		return strconv.ParseFloat(string(raw), 64)
	},
	Decimal: func(raw []byte, _ *time.Location) (any, error) {
		return decimal.NewFromString(string(raw))
	},
	VarChar:   view,
	Char:      view,
	Text:      view,
	Enum:      view,
	Blob:      view,
	JSON:      view,
	Date:      timeOf(time.DateOnly),
	Datetime:  timeOf(time.DateTime),
	Timestamp: timeOf(time.DateTime),
	Time: func(raw []byte, _ *time.Location) (any, error) {
		return parseTime(string(raw))
	},
	Year: signed[int16](16),
})

// decode decodes one cell of tag t; nil raw is SQL NULL.
func decode(t Type, raw []byte, loc *time.Location) (any, error) {
	if raw == nil {
		return nil, nil
	}
	v, err := decoders.Resolve(t)(raw, loc)
	if err != nil {
		var e *nebulaerrors.Error
		if !errors.As(err, &e) {
			e = nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeData, "failed to decode mysql value")
		}
		return nil, e.WithDetail("type", t.String()).WithDetail("value", string(raw))
	}
	return v, nil
}

// parseTime parses a TIME value, "[-]H+:MM:SS[.ffffff]", which is an
// interval of up to 838 hours rather than a time of day.
func parseTime(s string) (time.Duration, error) {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, nebulaerrors.Newf(nebulaerrors.ErrorTypeData, "malformed time %q", s)
	}

	h, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil {
		return 0, err
	}
	m, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil || m > 59 {
		return 0, nebulaerrors.Newf(nebulaerrors.ErrorTypeData, "malformed time minutes %q", parts[1])
	}

	secs, frac, _ := strings.Cut(parts[2], ".")
	sec, err := strconv.ParseUint(secs, 10, 8)
	if err != nil || sec > 59 {
		return 0, nebulaerrors.Newf(nebulaerrors.ErrorTypeData, "malformed time seconds %q", parts[2])
	}

	var micros uint64
	if frac != "" {
		if len(frac) > 6 {
			frac = frac[:6]
		}
		micros, err = strconv.ParseUint(frac+strings.Repeat("0", 6-len(frac)), 10, 32)
		if err != nil {
			return 0, err
		}
	}

	d := time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(sec)*time.Second +
		time.Duration(micros)*time.Microsecond
	if neg {
		d = -d
	}
	return d, nil
}
