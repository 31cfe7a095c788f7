package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComparatorApply(t *testing.T) {
	tests := []struct {
		name string
		c    Comparator
		a, b Value
		want bool
	}{
		{"number lt", Lt, Number(1), Number(2), true},
		{"number ge equal", Ge, Number(2), Number(2), true},
		{"number gt", Gt, Number(1), Number(2), false},
		{"text le", Le, Text("abc"), Text("abd"), true},
		{"bool eq", Eq, Bool(true), Bool(true), true},
		{"bool ne", Ne, Bool(true), Bool(false), true},
		{"location eq", Eq, Location{Lat: 1, Lon: 1}, Location{Lat: 1, Lon: 1}, true},
		{"blob ne", Ne, Blob{1}, Blob{2}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.c.Apply(tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComparatorApplyTypeMismatch(t *testing.T) {
	_, err := Lt.Apply(Number(1), Text("2"))
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = Lt.Apply(Blob{1}, Blob{2})
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestComparatorTokens(t *testing.T) {
	for _, c := range []Comparator{Eq, Ne, Lt, Le, Gt, Ge} {
		parsed, ok := ParseComparator(c.String())
		require.True(t, ok)
		assert.Equal(t, c, parsed)
	}
	_, ok := ParseComparator("=<")
	assert.False(t, ok)
}

func TestArithApplyNumbers(t *testing.T) {
	tests := []struct {
		op   ArithOp
		want Number
	}{
		{Add, 9},
		{Sub, 5},
		{Mul, 14},
		{Div, 3.5},
		{Mod, 1},
	}

	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			got, err := tt.op.Apply(Number(7), Number(2))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestArithApplyDivisionByZero(t *testing.T) {
	_, err := Div.Apply(Number(1), Number(0))
	assert.ErrorIs(t, err, ErrDivisionByZero)

	_, err = Mod.Apply(Number(1), Number(0))
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

func TestArithApplyText(t *testing.T) {
	got, err := Add.Apply(Text("kitchen"), Text("/light"))
	require.NoError(t, err)
	assert.Equal(t, Text("kitchen/light"), got)

	_, err = Sub.Apply(Text("a"), Text("b"))
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestArithApplyLocationDistance(t *testing.T) {
	amsterdam := Location{Lat: 52.3676, Lon: 4.9041}
	rotterdam := Location{Lat: 51.9244, Lon: 4.4777}

	got, err := Sub.Apply(amsterdam, rotterdam)
	require.NoError(t, err)

	meters, ok := got.(Number)
	require.True(t, ok)
	assert.InDelta(t, 57_500, float64(meters), 1_000)

	zero, err := Sub.Apply(amsterdam, amsterdam)
	require.NoError(t, err)
	assert.Equal(t, Number(0), zero)

	_, err = Add.Apply(amsterdam, rotterdam)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestReductionModeNames(t *testing.T) {
	for _, m := range []ReductionMode{All, Any, Max, Min, Mean, Median} {
		parsed, err := ParseReductionMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}

	assert.False(t, All.Collapses())
	assert.False(t, Any.Collapses())
	assert.True(t, Median.Collapses())

	_, err := ParseReductionMode("SUM")
	assert.Error(t, err)
}
