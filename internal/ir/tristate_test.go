package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAndTable(t *testing.T) {
	tests := []struct {
		a, b TriState
		want TriState
	}{
		{True, True, True},
		{True, False, False},
		{True, Undefined, Undefined},
		{False, True, False},
		{False, False, False},
		{False, Undefined, False},
		{Undefined, True, Undefined},
		{Undefined, False, False},
		{Undefined, Undefined, Undefined},
	}

	for _, tt := range tests {
		t.Run(tt.a.String()+"_AND_"+tt.b.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, And(tt.a, tt.b))
		})
	}
}

func TestOrTable(t *testing.T) {
	tests := []struct {
		a, b TriState
		want TriState
	}{
		{True, True, True},
		{True, False, True},
		{True, Undefined, True},
		{False, True, True},
		{False, False, False},
		{False, Undefined, False},
		{Undefined, True, True},
		{Undefined, False, False},
		{Undefined, Undefined, Undefined},
	}

	for _, tt := range tests {
		t.Run(tt.a.String()+"_OR_"+tt.b.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Or(tt.a, tt.b))
		})
	}
}

func TestNotTable(t *testing.T) {
	assert.Equal(t, False, Not(True))
	assert.Equal(t, True, Not(False))
	assert.Equal(t, Undefined, Not(Undefined))
}

func TestTriStateStringRoundTrip(t *testing.T) {
	for _, s := range []TriState{True, False, Undefined} {
		parsed, err := ParseTriState(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}

	_, err := ParseTriState("MAYBE")
	assert.Error(t, err)
}
