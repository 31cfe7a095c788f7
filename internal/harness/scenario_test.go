package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_ResolvesRulePaths(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/door.yaml")
	require.NoError(t, err)
	require.Len(t, scenario.Rules, 1)
	assert.Equal(t, filepath.Join("testdata", "rules", "door.cue"), scenario.Rules[0])
}

func TestLoadScenario_MissingRuleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: s
description: d
rules: [nowhere.cue]
steps: [{at: 0}]
assertions: [{type: trace_count, event: "x TRUE", count: 0}]
`), 0644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rule file not found")
}

func TestLoadScenario_FileNotFound(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/nope.yaml")
	assert.Error(t, err)
}

func TestParseScenario_Validation(t *testing.T) {
	const base = `
name: s
description: d
expressions: [{id: a, expression: "(x@y:z > 1)"}]
`
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"unknown field", base + "steps: [{at: 0}]\nassertion: []\n", "field assertion not found"},
		{"missing name", "description: d\nexpressions: [{id: a, expression: x}]\nsteps: [{at: 0}]\nassertions: [{type: trace_contains, event: e}]\n", "name is required"},
		{"nothing registered", "name: s\ndescription: d\nsteps: [{at: 0}]\nassertions: [{type: trace_contains, event: e}]\n", "at least one of"},
		{"no steps", base + "assertions: [{type: trace_contains, event: e}]\n", "steps list is required"},
		{"no assertions", base + "steps: [{at: 0}]\n", "assertions list is required"},
		{"time goes backwards", base + "steps: [{at: 5}, {at: 4}]\nassertions: [{type: trace_contains, event: e}]\n", "before previous step"},
		{"bad literal", base + "steps: [{at: 0, readings: [{sensor: \"x@y:z\", value: nope}]}]\nassertions: [{type: trace_contains, event: e}]\n", "value"},
		{"until before last step", base + "steps: [{at: 10}]\nuntil: 5\nassertions: [{type: trace_contains, event: e}]\n", "until"},
		{"unknown assertion", base + "steps: [{at: 0}]\nassertions: [{type: eventually}]\n", "unknown assertion type"},
		{"bad final state", base + "steps: [{at: 0}]\nassertions: [{type: final_state, id: a, state: MAYBE}]\n", "tri-state"},
		{"order without events", base + "steps: [{at: 0}]\nassertions: [{type: trace_order}]\n", "events list is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
