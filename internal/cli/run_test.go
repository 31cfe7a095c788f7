package cli

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/senselogic/internal/mqtt"
)

func TestRunRequiresRulesDirectory(t *testing.T) {
	_, err := execute(t, NewRunCommand(&RootOptions{Format: "text"}), "--db", filepath.Join(t.TempDir(), "test.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "rules directory is required")
}

func TestRunNonExistentRulesDir(t *testing.T) {
	tmpDir := t.TempDir()
	_, err := execute(t, NewRunCommand(&RootOptions{Format: "text"}),
		"--db", filepath.Join(tmpDir, "test.db"), filepath.Join(tmpDir, "missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rules directory not found")
}

func TestRunInvalidRules(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, tmpDir, "rules/bad.cue", `rule: bad: expression: "(home@a:b >"`)

	_, err := execute(t, NewRunCommand(&RootOptions{Format: "text"}),
		"--db", filepath.Join(tmpDir, "test.db"), filepath.Join(tmpDir, "rules"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load rules")
}

func TestRunConfigRejectsUnknownKeys(t *testing.T) {
	tmpDir := t.TempDir()
	config := writeFile(t, tmpDir, "senselogic.yaml", "rules: ./nowhere\nunknown: 1\n")

	_, err := execute(t, NewRunCommand(&RootOptions{Format: "text"}), "--config", config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestRunIngestsMQTTAndReportsTransitions(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, tmpDir, "rules/door.cue", doorRules)
	config := writeFile(t, tmpDir, "senselogic.yaml", `
retention: 1h
mqtt:
  routes:
    - topic: zigbee2mqtt/+
      location: home
      fields: [contact]
`)

	sub := mqtt.NewFakeSubscriber()
	cmd := newRunCommand(&RunOptions{RootOptions: &RootOptions{Format: "text"}, Subscriber: sub})

	out := &syncBuffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs([]string{"--config", config, "--db", filepath.Join(tmpDir, "test.db"), filepath.Join(tmpDir, "rules")})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- cmd.ExecuteContext(ctx)
	}()

	require.Eventually(t, func() bool {
		return len(sub.Filters()) == 1
	}, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "door_open UNDEFINED")
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, sub.Deliver("zigbee2mqtt/door", []byte(`{"contact": false, "battery": 90}`)))

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "door_open TRUE")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errChan:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancellation")
	}
	assert.True(t, sub.Closed)
}
