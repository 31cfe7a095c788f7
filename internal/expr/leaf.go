package expr

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/roach88/senselogic/internal/history"
	"github.com/roach88/senselogic/internal/ir"
)

// SensorLeaf reads one sensor value through the bound capability and
// reduces its history window.
type SensorLeaf struct {
	node
	Binding
	Reduction ir.ReductionMode
	// History is the window length in milliseconds; 0 means newest only.
	History int64

	mu       sync.Mutex
	sensors  SensorCapability
	resumeAt int64
}

// NewSensorLeaf builds an unbound leaf. Address parts are limited to
// letters, digits and "_-./"; the entity and value path must not be empty.
func NewSensorLeaf(b Binding, mode ir.ReductionMode, historyMS int64) (*SensorLeaf, error) {
	if err := checkName("location", b.Location, true); err != nil {
		return nil, err
	}
	if err := checkName("entity", b.Entity, false); err != nil {
		return nil, err
	}
	if err := checkName("value path", b.ValuePath, false); err != nil {
		return nil, err
	}
	if _, err := ir.ParseReductionMode(mode.String()); err != nil {
		return nil, err
	}
	if historyMS < 0 {
		return nil, fmt.Errorf("history length %d must not be negative", historyMS)
	}
	return &SensorLeaf{Binding: b, Reduction: mode, History: historyMS}, nil
}

func checkName(what, s string, emptyOK bool) error {
	if s == "" && !emptyOK {
		return fmt.Errorf("missing sensor %s", what)
	}
	for i := 0; i < len(s); i++ {
		if !isNameByte(s[i]) {
			return fmt.Errorf("sensor %s %q: invalid character %q", what, s, s[i])
		}
	}
	return nil
}

func (l *SensorLeaf) String() string {
	s := l.Address()
	if q := l.Query(); q != "" {
		s += "?" + q
	}
	return s + "{" + l.Reduction.String() + "," + strconv.FormatInt(l.History, 10) + "}"
}

func (l *SensorLeaf) HistoryLength() int64   { return l.History }
func (l *SensorLeaf) Mode() ir.ReductionMode { return l.Reduction }
func (l *SensorLeaf) children() []Node       { return nil }

// Bound reports whether the leaf currently holds a capability.
func (l *SensorLeaf) Bound() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sensors != nil
}

// ResumeAt is the last time passed to SleepUntil.
func (l *SensorLeaf) ResumeAt() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.resumeAt
}

// SleepUntil records readyAt and forwards it to capabilities that support
// suspension.
func (l *SensorLeaf) SleepUntil(ctx context.Context, readyAt int64) {
	l.mu.Lock()
	l.resumeAt = readyAt
	sensors := l.sensors
	l.mu.Unlock()
	if s, ok := sensors.(Suspender); ok {
		s.Suspend(ctx, l.id, readyAt)
	}
}

// Values fetches the window ending at now and applies the reduction.
func (l *SensorLeaf) Values(ctx context.Context, now int64) ([]ir.Reading, error) {
	l.mu.Lock()
	sensors := l.sensors
	l.mu.Unlock()
	if sensors == nil {
		return nil, fmt.Errorf("%s: %w", l.id, ErrUnbound)
	}

	raw, err := sensors.GetValues(ctx, l.id, now, l.History)
	if err != nil {
		return nil, fmt.Errorf("sensor %s: %w", l.id, err)
	}
	window := history.Window(raw, now, l.History)
	if len(window) == 0 {
		l.deferUntil = ir.Forever
		return nil, fmt.Errorf("sensor %s: %w", l.id, ErrNoValuesInInterval)
	}
	out, err := history.Reduce(window, l.Reduction)
	if err != nil {
		return nil, fmt.Errorf("sensor %s: %w", l.id, err)
	}
	l.deferUntil = history.Expiry(window, l.History)
	return out, nil
}

func (l *SensorLeaf) bind(ctx context.Context, sensors SensorCapability) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sensors != nil {
		return &SetupError{Sensor: l.id, Err: fmt.Errorf("already bound")}
	}
	if err := sensors.Register(ctx, l.id, l.Binding); err != nil {
		if IsConfigurationError(err) || IsSetupError(err) {
			return err
		}
		return &SetupError{Sensor: l.id, Err: err}
	}
	l.sensors = sensors
	return nil
}

func (l *SensorLeaf) unbind(ctx context.Context) {
	l.mu.Lock()
	sensors := l.sensors
	l.sensors = nil
	l.mu.Unlock()
	if sensors != nil {
		sensors.Unregister(ctx, l.id)
	}
}
