package dispatch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/nebula-columnar/pkg/nebulaerrors"
)

type color uint8

const (
	red color = iota
	green
	blue
	colorCount
)

func (c color) String() string {
	return [...]string{"Red", "Green", "Blue"}[c]
}

type op struct {
	name string
	fn   func(int) int
}

func (o op) Validate() error {
	if o.fn == nil {
		return errors.New("missing fn")
	}
	return nil
}

func TestNew_Exhaustive(t *testing.T) {
	tb, err := New("colors", colorCount, map[color]func() string{
		red:   func() string { return "r" },
		green: func() string { return "g" },
		blue:  func() string { return "b" },
	})
	require.NoError(t, err)
	assert.Equal(t, 3, tb.Len())
	assert.Equal(t, "colors", tb.Name())

	for tag, want := range map[color]string{red: "r", green: "g", blue: "b"} {
		assert.Equal(t, want, tb.Resolve(tag)())
	}
}

func TestNew_MissingTag(t *testing.T) {
	_, err := New("colors", colorCount, map[color]func() string{
		red:  func() string { return "r" },
		blue: func() string { return "b" },
	})
	require.Error(t, err)
	assert.True(t, nebulaerrors.IsType(err, nebulaerrors.ErrorTypeInternal))
	assert.Contains(t, err.Error(), "no entry for tag Green")
}

func TestNew_NilFunctionIsMissing(t *testing.T) {
	_, err := New("colors", colorCount, map[color]func() string{
		red:   func() string { return "r" },
		green: nil,
		blue:  func() string { return "b" },
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Green")
}

func TestNew_OutOfRangeTag(t *testing.T) {
	_, err := New("colors", colorCount, map[color]func() string{
		red:        func() string { return "r" },
		green:      func() string { return "g" },
		blue:       func() string { return "b" },
		colorCount: func() string { return "x" },
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside the type system")
}

func TestNew_PartialEntryRejectedByValidator(t *testing.T) {
	_, err := New("ops", colorCount, map[color]op{
		red:   {name: "double", fn: func(i int) int { return 2 * i }},
		green: {name: "half"},
		blue:  {name: "neg", fn: func(i int) int { return -i }},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid entry for tag Green")
}

func TestMustNew_Panics(t *testing.T) {
	assert.Panics(t, func() {
		MustNew("colors", colorCount, map[color]int{red: 1})
	})
}

func TestLookup(t *testing.T) {
	tb := MustNew("colors", colorCount, map[color]int{red: 1, green: 2, blue: 3})

	v, ok := tb.Lookup(blue)
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	_, ok = tb.Lookup(color(200))
	assert.False(t, ok)
}
