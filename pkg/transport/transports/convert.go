package transports

import (
	"bytes"
	"math"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/ajitpratap0/nebula-columnar/pkg/nebulaerrors"
)

const microsPerDay = int64(24 * time.Hour / time.Microsecond)

func ownedString(b []byte) string {
	return string(b)
}

func ownedBytes(b []byte) []byte {
	return bytes.Clone(b)
}

// compactJSON validates a json document and strips insignificant whitespace.
func compactJSON(b []byte) (string, error) {
	var buf bytes.Buffer
	buf.Grow(len(b))
	if err := json.Compact(&buf, b); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func timestampMicros(t time.Time) (arrow.Timestamp, error) {
	return arrow.TimestampFromTime(t, arrow.Microsecond)
}

// date32 keeps the calendar date of t in its own zone.
func date32(t time.Time) (arrow.Date32, error) {
	_, offset := t.Zone()
	secs := t.Unix() + int64(offset)
	days := secs / 86400
	if secs%86400 < 0 {
		days--
	}
	if days < math.MinInt32 || days > math.MaxInt32 {
		return 0, nebulaerrors.Newf(nebulaerrors.ErrorTypeConversion, "date %s is outside the date32 range", t.Format(time.DateOnly))
	}
	return arrow.Date32(days), nil
}

// timeOfDay converts a microsecond offset to time64, which holds [0, 24h).
func timeOfDay(micros int64) (arrow.Time64, error) {
	if micros < 0 || micros >= microsPerDay {
		return 0, nebulaerrors.Newf(nebulaerrors.ErrorTypeConversion, "time %dus is not a time of day", micros)
	}
	return arrow.Time64(micros), nil
}

func durationTimeOfDay(d time.Duration) (arrow.Time64, error) {
	return timeOfDay(d.Microseconds())
}

// decimalFloat64 rounds to the nearest float64; values beyond its range fail.
func decimalFloat64(d decimal.Decimal) (float64, error) {
	f, _ := d.Float64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, nebulaerrors.New(nebulaerrors.ErrorTypeConversion, "numeric value overflows float64")
	}
	return f, nil
}

func decimalFloat64List(ds []*decimal.Decimal) ([]*float64, error) {
	out := make([]*float64, len(ds))
	for i, d := range ds {
		if d == nil {
			continue
		}
		f, err := decimalFloat64(*d)
		if err != nil {
			return nil, err
		}
		out[i] = &f
	}
	return out, nil
}

func uint64Int64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, nebulaerrors.New(nebulaerrors.ErrorTypeConversion, "unsigned value overflows int64")
	}
	return int64(v), nil
}
