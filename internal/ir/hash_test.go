package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpressionFingerprintStable(t *testing.T) {
	a := ExpressionFingerprint(`(home@thermo:temp{ANY,0} > 20)`)
	b := ExpressionFingerprint(`(home@thermo:temp{ANY,0} > 20)`)
	c := ExpressionFingerprint(`(home@thermo:temp{ANY,0} > 21)`)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestFingerprintDomainSeparation(t *testing.T) {
	assert.NotEqual(t, ExpressionFingerprint("x"), SensorFingerprint("x"))
}
