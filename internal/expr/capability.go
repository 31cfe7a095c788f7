package expr

import (
	"context"
	"net/url"

	"github.com/roach88/senselogic/internal/ir"
)

// SensorCapability is the sensor layer a leaf binds to. Implementations must
// be safe for concurrent use.
type SensorCapability interface {
	// Register binds id to the sensor described by b. It returns a
	// *ConfigurationError or *SetupError when the binding cannot be honored.
	Register(ctx context.Context, id string, b Binding) error
	// Unregister releases id. Unknown ids are ignored.
	Unregister(ctx context.Context, id string)
	// GetValues returns readings for id with now-timespan <= ts <= now,
	// newest first; with timespan 0, only the newest reading.
	GetValues(ctx context.Context, id string, now, timespan int64) ([]ir.Reading, error)
	// AverageRate is the informational sampling rate in readings per second.
	AverageRate() float64
	// StartupTime is the informational delay in milliseconds before id
	// produces its first reading.
	StartupTime(id string) int64
}

// Suspender is implemented by capabilities that can pause sampling for a
// binding until a given time.
type Suspender interface {
	Suspend(ctx context.Context, id string, until int64)
}

// Binding addresses one sensor value.
type Binding struct {
	Location  string
	Entity    string
	ValuePath string
	Config    map[string]string
}

// Address renders location@entity:valuePath.
func (b Binding) Address() string {
	return b.Location + "@" + b.Entity + ":" + b.ValuePath
}

// Query renders the configuration as a sorted, escaped query string.
func (b Binding) Query() string {
	if len(b.Config) == 0 {
		return ""
	}
	values := make(url.Values, len(b.Config))
	for k, v := range b.Config {
		values.Set(k, v)
	}
	return values.Encode()
}
