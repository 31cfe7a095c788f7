package expr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/senselogic/internal/expr"
	"github.com/roach88/senselogic/internal/ir"
)

func TestParseRoundTrip(t *testing.T) {
	tests := []string{
		`home@thermo:temp{ANY,0}`,
		`(home@thermo:temp{MEAN,60000} > 21.5)`,
		`NOT (@door:open{ANY,0} == true)`,
		`((home@thermo:temp{MAX,1000} - 2) >= office@thermo:temp{MIN,1000})`,
		`(((home@thermo:temp{ALL,5000} > 20) AND NOT (home@window:open{ANY,0} == true)) OR (garden@rain:mm{MEDIAN,3600000} < 0.5))`,
		`(gps@car:pos{ANY,0} - geo(52.37,4.9))`,
		`(home@lock:state?accuracy=high&unit=C{ANY,0} != "locked")`,
		`(lab@gauge:raw{ANY,0} == 0x0aff)`,
		`((a@b:c{ANY,0} * (a@b:d{ANY,0} / 2)) % 7)`,
		`NOT NOT (x@y:z{ANY,250} <= -3)`,
	}

	for _, text := range tests {
		t.Run(text, func(t *testing.T) {
			n, err := expr.Parse(text)
			require.NoError(t, err)
			assert.Equal(t, text, n.String())

			again, err := expr.Parse(n.String())
			require.NoError(t, err)
			assert.True(t, expr.Equal(n, again))
		})
	}
}

func mustLeaf(t *testing.T, b expr.Binding, mode ir.ReductionMode, hist int64) *expr.SensorLeaf {
	t.Helper()
	leaf, err := expr.NewSensorLeaf(b, mode, hist)
	require.NoError(t, err)
	return leaf
}

func TestParseRoundTripBuilt(t *testing.T) {
	tests := []struct {
		name  string
		build func(t *testing.T) expr.Node
	}{
		{"decomposed text", func(t *testing.T) expr.Node {
			return expr.NewComparison(ir.Eq,
				mustLeaf(t, expr.Binding{Location: "home", Entity: "tag", ValuePath: "name"}, ir.Any, 0),
				expr.NewConstant(ir.Text("caf\u0065\u0301")))
		}},
		{"config needing escapes", func(t *testing.T) expr.Node {
			return expr.NewComparison(ir.Gt,
				mustLeaf(t, expr.Binding{Entity: "thermo", ValuePath: "temp",
					Config: map[string]string{"label": "living room {1}", "k&v": "a=b)"}}, ir.Mean, 60000),
				expr.NewConstant(ir.Number(21)))
		}},
		{"nested logic", func(t *testing.T) expr.Node {
			leaf := mustLeaf(t, expr.Binding{Location: "a.b", Entity: "c-d", ValuePath: "e/f_g"}, ir.Median, 5)
			sum := expr.NewArithmetic(ir.Add, leaf, expr.NewConstant(ir.Number(2)))
			raw := mustLeaf(t, expr.Binding{Location: "lab", Entity: "x", ValuePath: "raw"}, ir.Any, 0)
			return expr.NewLogic(expr.Or,
				expr.NewNot(expr.NewComparison(ir.Lt, sum, expr.NewConstant(ir.Number(-0.5)))),
				expr.NewComparison(ir.Ne, raw, expr.NewConstant(ir.Text("\"quoted\"\n"))))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := tt.build(t)
			again, err := expr.Parse(n.String())
			require.NoError(t, err)
			assert.True(t, expr.Equal(n, again), "%s", n)
			assert.Equal(t, n.String(), again.String())
		})
	}
}

func TestNewSensorLeafRejectsUnprintable(t *testing.T) {
	tests := []struct {
		name string
		b    expr.Binding
		mode ir.ReductionMode
		hist int64
	}{
		{"space in entity", expr.Binding{Location: "home", Entity: "living room", ValuePath: "temp"}, ir.Any, 0},
		{"colon in value path", expr.Binding{Location: "home", Entity: "x", ValuePath: "a:b"}, ir.Any, 0},
		{"at in location", expr.Binding{Location: "a@b", Entity: "x", ValuePath: "v"}, ir.Any, 0},
		{"empty entity", expr.Binding{Location: "home", ValuePath: "v"}, ir.Any, 0},
		{"empty value path", expr.Binding{Location: "home", Entity: "x"}, ir.Any, 0},
		{"unknown mode", expr.Binding{Entity: "x", ValuePath: "v"}, ir.ReductionMode(99), 0},
		{"negative history", expr.Binding{Entity: "x", ValuePath: "v"}, ir.Max, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := expr.NewSensorLeaf(tt.b, tt.mode, tt.hist)
			assert.Error(t, err)
		})
	}
}

func TestParseLeafDefaults(t *testing.T) {
	n, err := expr.Parse(`(home@thermo:temp > 1)`)
	require.NoError(t, err)
	assert.Equal(t, `(home@thermo:temp{ANY,0} > 1)`, n.String())

	leaves := expr.Leaves(n)
	require.Len(t, leaves, 1)
	assert.Equal(t, "home", leaves[0].Location)
	assert.Equal(t, "thermo", leaves[0].Entity)
	assert.Equal(t, "temp", leaves[0].ValuePath)
	assert.Equal(t, ir.Any, leaves[0].Reduction)
	assert.Equal(t, int64(0), leaves[0].History)
}

func TestParseLeafConfiguration(t *testing.T) {
	n, err := expr.Parse(`home@thermo:temp?unit=C&rate=2{MEAN,1000}`)
	require.NoError(t, err)
	leaf := expr.Leaves(n)[0]
	assert.Equal(t, map[string]string{"unit": "C", "rate": "2"}, leaf.Config)
	// keys are emitted sorted
	assert.Equal(t, `home@thermo:temp?rate=2&unit=C{MEAN,1000}`, n.String())
}

func TestParseWhitespaceTolerated(t *testing.T) {
	n, err := expr.Parse("  ( home@t:v{ANY,0}   >\n3 )  ")
	require.NoError(t, err)
	assert.Equal(t, `(home@t:v{ANY,0} > 3)`, n.String())
}

func TestParseKinds(t *testing.T) {
	_, err := expr.ParseLogical(`(a@b:c > 1)`)
	require.NoError(t, err)

	_, err = expr.ParseLogical(`(a@b:c + 1)`)
	assert.Error(t, err)

	_, err = expr.ParseValue(`(a@b:c + 1)`)
	require.NoError(t, err)

	_, err = expr.ParseValue(`(a@b:c > 1)`)
	assert.Error(t, err)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ``},
		{"unclosed", `(a@b:c > 1`},
		{"missing operator", `(a@b:c 1)`},
		{"trailing input", `(a@b:c > 1) x`},
		{"unknown mode", `a@b:c{SUM,10}`},
		{"negative history", `a@b:c{ANY,-1}`},
		{"missing history", `a@b:c{ANY}`},
		{"missing entity", `a@:c`},
		{"missing value path", `a@b:`},
		{"logic over values", `(a@b:c AND 1)`},
		{"compare over logic", `((a@b:c > 1) > 2)`},
		{"not over value", `NOT a@b:c`},
		{"repeated config key", `a@b:c?k=1&k=2`},
		{"bad literal", `(a@b:c > ?)`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := expr.Parse(tt.text)
			require.Error(t, err)
			var pe *expr.ParseError
			assert.ErrorAs(t, err, &pe)
		})
	}
}

func TestAssignIDs(t *testing.T) {
	n, err := expr.Parse(`((a@b:c > 1) AND NOT (a@b:d < 2))`)
	require.NoError(t, err)
	expr.AssignIDs(n, "rule")

	var ids []string
	expr.Walk(n, func(x expr.Node) bool {
		ids = append(ids, x.ID())
		return true
	})
	assert.Equal(t, []string{
		"rule",
		"rule.L", "rule.L.L", "rule.L.R",
		"rule.R", "rule.R.L", "rule.R.L.L", "rule.R.L.R",
	}, ids)

	leaves := expr.Leaves(n)
	require.Len(t, leaves, 2)
	assert.Equal(t, "rule.L.L", leaves[0].ID())
	assert.Equal(t, "rule.R.L.L", leaves[1].ID())
}

func TestEqualIgnoresIDs(t *testing.T) {
	a, err := expr.Parse(`(a@b:c > 1)`)
	require.NoError(t, err)
	b, err := expr.Parse(`(a@b:c > 1)`)
	require.NoError(t, err)
	expr.AssignIDs(a, "one")
	expr.AssignIDs(b, "two")
	assert.True(t, expr.Equal(a, b))

	c, err := expr.Parse(`(a@b:c >= 1)`)
	require.NoError(t, err)
	assert.False(t, expr.Equal(a, c))
}
