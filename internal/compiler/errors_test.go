package compiler

import (
	"errors"
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatCUEErrorKeepsPosition(t *testing.T) {
	v := cuecontext.New().CompileString("a: int\na: \"x\"\n")
	cueErr := v.Validate()
	require.Error(t, cueErr)

	err := FormatCUEError(cueErr)
	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "cue", ce.Field)
	assert.True(t, ce.Pos.IsValid())
	assert.Contains(t, err.Error(), ce.Message)
}

func TestFormatCUEErrorNil(t *testing.T) {
	assert.NoError(t, FormatCUEError(nil))
}

func TestCompileErrorWithoutPosition(t *testing.T) {
	err := &CompileError{Field: "expression", Message: "expression is required"}
	assert.Equal(t, "expression: expression is required", err.Error())
}
