package mqtt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/roach88/senselogic/internal/ir"
)

// ErrNotObject is returned for payloads that are not a JSON object.
var ErrNotObject = errors.New("payload is not a JSON object")

// Ingester decodes routed messages into readings and appends them to a Sink.
type Ingester struct {
	routes []Route
	sink   Sink
	now    func() int64
	logger *slog.Logger
}

// NewIngester validates routes and creates an Ingester.
func NewIngester(sink Sink, routes []Route, now func() int64, logger *slog.Logger) (*Ingester, error) {
	for i, r := range routes {
		if r.Topic == "" {
			return nil, fmt.Errorf("route %d: topic is required", i)
		}
		if r.Location == "" || strings.ContainsAny(r.Location, "@:?{}() ") {
			return nil, fmt.Errorf("route %d (%s): invalid location %q", i, r.Topic, r.Location)
		}
		if r.QoS > 2 {
			return nil, fmt.Errorf("route %d (%s): qos must be 0, 1 or 2", i, r.Topic)
		}
	}
	if now == nil {
		now = func() int64 { return time.Now().UnixMilli() }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingester{routes: routes, sink: sink, now: now, logger: logger}, nil
}

// Start subscribes every route on sub. Messages are appended with ctx.
func (in *Ingester) Start(ctx context.Context, sub Subscriber) error {
	for _, r := range in.routes {
		route := r
		err := sub.Subscribe(route.Topic, route.QoS, func(topic string, payload []byte) {
			n, err := in.Handle(ctx, route, topic, payload)
			if err != nil {
				in.logger.Warn("dropped mqtt message", "topic", topic, "error", err)
				return
			}
			in.logger.Debug("ingested mqtt message", "topic", topic, "readings", n)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Handle decodes one message for route and appends its readings. It returns
// the number of readings stored.
func (in *Ingester) Handle(ctx context.Context, route Route, topic string, payload []byte) (int, error) {
	fields, err := decodeObject(payload)
	if err != nil {
		return 0, err
	}

	ts := in.now()
	if route.TimestampField != "" {
		raw, ok := fields[route.TimestampField]
		if ok {
			ts, err = decodeTimestamp(raw)
			if err != nil {
				return 0, fmt.Errorf("%s: %w", route.TimestampField, err)
			}
			delete(fields, route.TimestampField)
		}
	}

	entity := topic[strings.LastIndex(topic, "/")+1:]
	if entity == "" {
		return 0, fmt.Errorf("topic %q has an empty last level", topic)
	}

	names := route.Fields
	if len(names) == 0 {
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	stored := 0
	for _, name := range names {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		v, ok := decodeValue(raw)
		if !ok {
			continue
		}
		sensor := route.Location + "@" + entity + ":" + name
		if err := in.sink.Append(ctx, sensor, ir.Reading{Value: v, Timestamp: ts}); err != nil {
			return stored, fmt.Errorf("append %s: %w", sensor, err)
		}
		stored++
	}
	return stored, nil
}

func decodeObject(payload []byte) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrNotObject
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return fields, nil
}

func decodeTimestamp(raw json.RawMessage) (int64, error) {
	var ms json.Number
	if err := json.Unmarshal(raw, &ms); err != nil {
		return 0, fmt.Errorf("timestamp must be a number")
	}
	n, err := ms.Int64()
	if err != nil {
		return 0, fmt.Errorf("timestamp must be integer milliseconds")
	}
	return n, nil
}

// decodeValue maps a JSON field onto a reading value. Numbers, strings and
// booleans map directly; {"lat":..,"lon":..} objects become locations.
// Anything else is skipped.
func decodeValue(raw json.RawMessage) (ir.Value, bool) {
	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, false
	}
	switch v := decoded.(type) {
	case float64:
		return ir.Number(v), true
	case string:
		return ir.Text(v), true
	case bool:
		return ir.Bool(v), true
	case map[string]interface{}:
		lat, okLat := v["lat"].(float64)
		lon, okLon := v["lon"].(float64)
		if okLat && okLon && len(v) == 2 {
			return ir.Location{Lat: lat, Lon: lon}, true
		}
	}
	return nil, false
}
