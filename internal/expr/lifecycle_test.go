package expr_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/senselogic/internal/expr"
	"github.com/roach88/senselogic/internal/ir"
	"github.com/roach88/senselogic/internal/testutil"
)

const twoSensors = `((home@a:v{ANY,0} > 1) AND (home@b:v{ANY,0} > 1))`

func TestInitializeBindsEveryLeaf(t *testing.T) {
	sensors := testutil.NewFakeSensors()
	n, err := expr.Parse(twoSensors)
	require.NoError(t, err)
	expr.AssignIDs(n, "e")

	require.NoError(t, expr.Initialize(context.Background(), n, sensors))
	assert.Equal(t, []string{"e.L.L", "e.R.L"}, sensors.Registered())
	for _, leaf := range expr.Leaves(n) {
		assert.True(t, leaf.Bound())
	}

	expr.Destroy(context.Background(), n)
	assert.Empty(t, sensors.Registered())
	expr.Destroy(context.Background(), n)
}

func TestInitializeRollsBackOnConfigurationError(t *testing.T) {
	sensors := testutil.NewFakeSensors()
	sensors.FailRegister("home@b:v", &expr.ConfigurationError{Sensor: "home@b:v", Key: "rate", Message: "unsupported"})
	n, err := expr.Parse(twoSensors)
	require.NoError(t, err)
	expr.AssignIDs(n, "e")

	err = expr.Initialize(context.Background(), n, sensors)
	require.Error(t, err)
	assert.True(t, expr.IsConfigurationError(err))
	assert.Empty(t, sensors.Registered(), "left leaf released again")
	for _, leaf := range expr.Leaves(n) {
		assert.False(t, leaf.Bound())
	}
}

func TestInitializeWrapsPlainErrorsAsSetup(t *testing.T) {
	sensors := testutil.NewFakeSensors()
	boom := errors.New("bus offline")
	sensors.FailRegister("home@a:v", boom)
	n, err := expr.Parse(twoSensors)
	require.NoError(t, err)
	expr.AssignIDs(n, "e")

	err = expr.Initialize(context.Background(), n, sensors)
	assert.True(t, expr.IsSetupError(err))
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, sensors.Registered())
}

func TestEvaluateAfterDestroyIsUnbound(t *testing.T) {
	sensors := testutil.NewFakeSensors()
	sensors.Add("home@a:v", ir.Number(2), 10)
	n, err := expr.ParseLogical(`(home@a:v{ANY,0} > 1)`)
	require.NoError(t, err)
	expr.AssignIDs(n, "e")
	require.NoError(t, expr.Initialize(context.Background(), n, sensors))

	expr.Destroy(context.Background(), n)
	_, err = n.Evaluate(context.Background(), 100)
	assert.ErrorIs(t, err, expr.ErrUnbound)
}

func TestConstantOnlyExpression(t *testing.T) {
	sensors := testutil.NewFakeSensors()
	n := bindLogical(t, sensors, `(3 > 2)`)
	got, err := n.Evaluate(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, ir.True, got)
	assert.Equal(t, ir.Forever, n.DeferUntil())
	assert.Equal(t, int64(0), n.HistoryLength())
}

func TestHistoryLengthIsDeepestWindow(t *testing.T) {
	n, err := expr.Parse(`((home@a:v{ALL,500} > 1) OR NOT ((home@b:v{MEAN,2000} - 1) < 0))`)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), n.HistoryLength())
}

func TestDumpGolden(t *testing.T) {
	n, err := expr.Parse(`(((home@thermo:temp{MEAN,60000} - 2) > 20) AND NOT (home@window:open{ANY,0} == true))`)
	require.NoError(t, err)
	expr.AssignIDs(n, "heating")

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "dump_heating", []byte(expr.Dump(n)))
}
