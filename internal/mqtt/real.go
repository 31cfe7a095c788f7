package mqtt

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// RealSubscriber subscribes on an actual MQTT broker.
type RealSubscriber struct {
	client paho.Client
}

// NewRealSubscriber connects to broker with a random client id.
// Subscriptions are restored by paho after a reconnect.
func NewRealSubscriber(broker string) (*RealSubscriber, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("senselogic-" + uuid.NewString()[:8]).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetCleanSession(false).
		SetResumeSubs(true)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return &RealSubscriber{client: client}, nil
}

// Subscribe registers h for every message matching filter.
func (s *RealSubscriber) Subscribe(filter string, qos byte, h Handler) error {
	token := s.client.Subscribe(filter, qos, func(_ paho.Client, msg paho.Message) {
		h(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe %s: timeout", filter)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", filter, err)
	}
	return nil
}

// Close disconnects from the broker.
func (s *RealSubscriber) Close() error {
	s.client.Disconnect(1000) // 1 second timeout
	return nil
}
