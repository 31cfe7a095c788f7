package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRunConfig(t *testing.T) {
	path := writeFile(t, t.TempDir(), "senselogic.yaml", `
database: /var/lib/senselogic.db
rules: ./rules
retention: 2h
metrics_addr: ":9100"
mqtt:
  broker: tcp://localhost:1883
  routes:
    - topic: zigbee2mqtt/+
      location: home
      fields: [temperature]
      qos: 1
`)

	cfg, err := LoadRunConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/senselogic.db", cfg.Database)
	assert.Equal(t, 2*time.Hour, cfg.Retention)
	assert.Equal(t, time.Minute, cfg.PruneInterval)
	assert.Equal(t, ":9100", cfg.MetricsAddr)
	require.Len(t, cfg.MQTT.Routes, 1)
	assert.Equal(t, "zigbee2mqtt/+", cfg.MQTT.Routes[0].Topic)
	assert.Equal(t, []string{"temperature"}, cfg.MQTT.Routes[0].Fields)
	assert.Equal(t, byte(1), cfg.MQTT.Routes[0].QoS)
	require.NoError(t, cfg.Validate())
}

func TestLoadRunConfigRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, t.TempDir(), "senselogic.yaml", "databse: x.db\n")
	_, err := LoadRunConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "databse")
}

func TestRunConfigValidate(t *testing.T) {
	base := func() RunConfig {
		cfg := DefaultRunConfig()
		cfg.Rules = "./rules"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*RunConfig)
		wantErr string
	}{
		{"defaults", func(*RunConfig) {}, ""},
		{"no rules", func(c *RunConfig) { c.Rules = "" }, "rules directory is required"},
		{"no database", func(c *RunConfig) { c.Database = "" }, "database path is required"},
		{"negative retention", func(c *RunConfig) { c.Retention = -time.Hour }, "retention must not be negative"},
		{"zero interval", func(c *RunConfig) { c.PruneInterval = 0 }, "prune_interval must be positive"},
		{"retention disabled", func(c *RunConfig) { c.Retention, c.PruneInterval = 0, 0 }, ""},
		{"broker without routes", func(c *RunConfig) { c.MQTT.Broker = "tcp://x:1883" }, "without routes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
