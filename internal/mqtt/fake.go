package mqtt

import (
	"fmt"
	"strings"
	"sync"
)

// FakeSubscriber delivers messages published through Deliver to matching
// subscriptions, for tests.
type FakeSubscriber struct {
	mu       sync.Mutex
	handlers map[string]Handler

	// SubscribeError, if set, will be returned by Subscribe.
	SubscribeError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeSubscriber creates a FakeSubscriber for testing.
func NewFakeSubscriber() *FakeSubscriber {
	return &FakeSubscriber{handlers: make(map[string]Handler)}
}

// Subscribe records the handler.
func (f *FakeSubscriber) Subscribe(filter string, _ byte, h Handler) error {
	if f.SubscribeError != nil {
		return f.SubscribeError
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, dup := f.handlers[filter]; dup {
		return fmt.Errorf("subscribe %s: already subscribed", filter)
	}
	f.handlers[filter] = h
	return nil
}

// Deliver hands payload to every subscription whose filter matches topic
// and reports how many received it.
func (f *FakeSubscriber) Deliver(topic string, payload []byte) int {
	f.mu.Lock()
	var hs []Handler
	for filter, h := range f.handlers {
		if Match(filter, topic) {
			hs = append(hs, h)
		}
	}
	f.mu.Unlock()
	for _, h := range hs {
		h(topic, payload)
	}
	return len(hs)
}

// Filters lists the subscribed topic filters.
func (f *FakeSubscriber) Filters() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.handlers))
	for filter := range f.handlers {
		out = append(out, filter)
	}
	return out
}

// Close marks the subscriber closed.
func (f *FakeSubscriber) Close() error {
	f.Closed = true
	return nil
}

// Match reports whether topic matches an MQTT filter with + and # wildcards.
func Match(filter, topic string) bool {
	fs := strings.Split(filter, "/")
	ts := strings.Split(topic, "/")
	for i, f := range fs {
		switch {
		case f == "#":
			return true
		case i >= len(ts):
			return false
		case f != "+" && f != ts[i]:
			return false
		}
	}
	return len(fs) == len(ts)
}
