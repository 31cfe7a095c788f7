// Package mqtt ingests sensor readings from an MQTT broker.
//
// Each Route subscribes to a topic filter. Payloads are JSON objects; every
// selected field becomes one reading for the sensor
// <location>@<last topic level>:<field>.
package mqtt

import (
	"context"

	"github.com/roach88/senselogic/internal/ir"
)

// Handler receives one message from a subscribed topic.
type Handler func(topic string, payload []byte)

// Subscriber is the broker side of ingestion.
type Subscriber interface {
	Subscribe(filter string, qos byte, h Handler) error
	Close() error
}

// Sink stores decoded readings.
type Sink interface {
	Append(ctx context.Context, sensor string, r ir.Reading) error
}

// Route maps a topic filter onto sensor addresses.
type Route struct {
	Topic    string   `yaml:"topic"`
	Location string   `yaml:"location"`
	Fields   []string `yaml:"fields,omitempty"`
	// TimestampField names a payload field holding epoch milliseconds.
	// Messages without it are stamped with the ingest clock.
	TimestampField string `yaml:"timestamp_field,omitempty"`
	QoS            byte   `yaml:"qos,omitempty"`
}
