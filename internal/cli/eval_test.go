package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/senselogic/internal/ir"
)

func ingestReadings(t *testing.T, dbPath string, readings ...[3]string) {
	t.Helper()
	for _, r := range readings {
		_, err := execute(t, NewIngestCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--at", r[2], r[0], r[1])
		require.NoError(t, err)
	}
}

func TestIngestSingleReading(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	out, err := execute(t, NewIngestCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--at", "1000", "home@living:temp", "21.5")
	require.NoError(t, err)
	assert.Equal(t, "Stored 1 reading(s) for home@living:temp\n", out)
}

func TestIngestBatchFile(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	file := writeFile(t, dir, "readings.yaml", `
- sensor: home@living:temp
  value: "19"
  ts: 1000
- sensor: home@living:temp
  value: "21"
  ts: 2000
- sensor: home@door:contact
  value: "true"
`)

	out, err := execute(t, NewIngestCommand(&RootOptions{Format: "json"}), "--db", dbPath, "--at", "5000", "--file", file)
	require.NoError(t, err)

	var resp struct {
		Data IngestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 3, resp.Data.Stored)
	assert.Equal(t, []string{"home@living:temp", "home@door:contact"}, resp.Data.Sensors)
}

func TestIngestRejectsBadLiteral(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	_, err := execute(t, NewIngestCommand(&RootOptions{Format: "text"}), "--db", dbPath, "home@living:temp", "warm")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestIngestArgsRequired(t *testing.T) {
	_, err := execute(t, NewIngestCommand(&RootOptions{Format: "text"}), "home@living:temp")
	require.Error(t, err)
}

func TestEvalLogical(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ingestReadings(t, dbPath,
		[3]string{"home@living:temp", "19", "1000"},
		[3]string{"home@living:temp", "23", "2000"},
	)

	out, err := execute(t, NewEvalCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--at", "2500", "(home@living:temp{MEAN,5000} > 20)")
	require.NoError(t, err)
	assert.Contains(t, out, "(home@living:temp{MEAN,5000} > 20) @2500")
	assert.Contains(t, out, "state:       TRUE")
	assert.Contains(t, out, "defer until: 6001")
}

func TestEvalLogicalBeforeAnyReading(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ingestReadings(t, dbPath, [3]string{"home@living:temp", "19", "1000"})

	out, err := execute(t, NewEvalCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--at", "500", "(home@living:temp > 20)")
	require.NoError(t, err)
	assert.Contains(t, out, "state:       UNDEFINED")
	assert.Contains(t, out, "defer until: never")
}

func TestEvalValueJSON(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ingestReadings(t, dbPath,
		[3]string{"home@living:temp", "19", "1000"},
		[3]string{"home@living:temp", "21", "2000"},
	)

	out, err := execute(t, NewEvalCommand(&RootOptions{Format: "json"}), "--db", dbPath, "--at", "3000", "home@living:temp")
	require.NoError(t, err)

	var resp struct {
		Data EvalResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Empty(t, resp.Data.State)
	assert.Equal(t, []string{"21@2000"}, resp.Data.Readings)
	assert.Equal(t, ir.Forever, resp.Data.DeferUntil)
}

func TestEvalRejectsBadOption(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	out, err := execute(t, NewEvalCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--at", "1", "(home@a:b?rate=fast > 1)")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E102]")
}
