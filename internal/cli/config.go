package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/senselogic/internal/mqtt"
)

// RunConfig is the YAML configuration of the run command.
//
//	database: ./senselogic.db
//	rules: ./rules
//	retention: 24h
//	prune_interval: 1m
//	metrics_addr: ":9100"
//	mqtt:
//	  broker: tcp://localhost:1883
//	  routes:
//	    - topic: zigbee2mqtt/+
//	      location: home
//	      fields: [temperature, humidity]
type RunConfig struct {
	Database      string        `yaml:"database"`
	Rules         string        `yaml:"rules"`
	Retention     time.Duration `yaml:"retention"`
	PruneInterval time.Duration `yaml:"prune_interval"`
	MetricsAddr   string        `yaml:"metrics_addr"`
	MQTT          MQTTConfig    `yaml:"mqtt"`
}

// MQTTConfig configures MQTT ingestion. An empty broker disables it.
type MQTTConfig struct {
	Broker string       `yaml:"broker"`
	Routes []mqtt.Route `yaml:"routes"`
}

// DefaultRunConfig returns the configuration used when no file is given.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Database:      "./senselogic.db",
		Retention:     24 * time.Hour,
		PruneInterval: time.Minute,
	}
}

// LoadRunConfig reads a config file over the defaults. Unknown keys are
// rejected.
func LoadRunConfig(path string) (RunConfig, error) {
	cfg := DefaultRunConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first unusable setting.
func (c RunConfig) Validate() error {
	if c.Database == "" {
		return errors.New("database path is required")
	}
	if c.Rules == "" {
		return errors.New("rules directory is required")
	}
	if c.Retention < 0 {
		return fmt.Errorf("retention must not be negative, got %s", c.Retention)
	}
	if c.Retention > 0 && c.PruneInterval <= 0 {
		return fmt.Errorf("prune_interval must be positive, got %s", c.PruneInterval)
	}
	if c.MQTT.Broker != "" && len(c.MQTT.Routes) == 0 {
		return errors.New("mqtt broker configured without routes")
	}
	return nil
}
