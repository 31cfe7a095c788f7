package compiler

import (
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileString(t *testing.T, src string) *Compiled {
	t.Helper()
	v := cuecontext.New().CompileString(src)
	require.NoError(t, v.Err())
	c, errs := Compile(v, false)
	require.Empty(t, errs)
	return c
}

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateCleanRuleSet(t *testing.T) {
	c := compileString(t, `
		rule: hot: expression: "(home@t:v{MAX,1000} > 25)"
		rule: cold: expression: "(home@t:v?unit=C < 5)"
		watch: temp: sensor: "home@t:v"
	`)
	assert.Empty(t, Validate(c))
}

func TestValidateDuplicateIDs(t *testing.T) {
	c := compileString(t, `
		rule: [
			{id: "same", expression: "(home@a:v > 1)"},
			{id: "same", expression: "(home@b:v > 1)"},
		]
	`)
	errs := Validate(c)
	assert.Equal(t, []string{ErrDuplicateID}, codes(errs))
}

func TestValidateRuleAndWatchShareNamespace(t *testing.T) {
	c := compileString(t, `
		rule: temp: expression: "(home@t:v > 1)"
		watch: temp: sensor: "home@t:v"
	`)
	assert.Equal(t, []string{ErrDuplicateID}, codes(Validate(c)))
}

func TestValidateNodeIDCollision(t *testing.T) {
	c := compileString(t, `
		rule: a: expression: "(home@t:v > 1)"
		watch: "a.L": sensor: "home@t:v"
	`)
	errs := Validate(c)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrIDCollision, errs[0].Code)
	assert.Equal(t, "rule.a", errs[0].Field)
}

func TestValidateConstantOnlyRule(t *testing.T) {
	c := compileString(t, `rule: never: expression: "(1 < 2)"`)
	assert.Equal(t, []string{ErrNoSensors}, codes(Validate(c)))
}

func TestValidateUnknownOption(t *testing.T) {
	c := compileString(t, `rule: r: expression: "(home@t:v?colour=red > 1)"`)
	errs := Validate(c)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnknownOption, errs[0].Code)
	assert.Contains(t, errs[0].Error(), `"colour"`)
}
