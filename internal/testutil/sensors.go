package testutil

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/roach88/senselogic/internal/expr"
	"github.com/roach88/senselogic/internal/history"
	"github.com/roach88/senselogic/internal/ir"
)

// FakeSensors is an in-memory expr.SensorCapability. Readings are keyed by
// sensor address (location@entity:valuePath); leaves bind to them by id.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeSensors struct {
	mu        sync.Mutex
	readings  map[string][]ir.Reading
	bindings  map[string]expr.Binding
	calls     map[string]int
	suspended map[string]int64
	failures  map[string]error
	rate      float64
}

// NewFakeSensors creates an empty capability.
func NewFakeSensors() *FakeSensors {
	return &FakeSensors{
		readings:  make(map[string][]ir.Reading),
		bindings:  make(map[string]expr.Binding),
		calls:     make(map[string]int),
		suspended: make(map[string]int64),
		failures:  make(map[string]error),
		rate:      1,
	}
}

// Add records a reading for address.
func (f *FakeSensors) Add(address string, v ir.Value, ts int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rs := append(f.readings[address], ir.Reading{Value: v, Timestamp: ts})
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].Timestamp > rs[j].Timestamp })
	f.readings[address] = rs
}

// Clear drops every reading for address.
func (f *FakeSensors) Clear(address string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.readings, address)
}

// FailRegister makes Register fail with err for leaves bound to address.
func (f *FakeSensors) FailRegister(address string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[address] = err
}

// Register implements expr.SensorCapability.
func (f *FakeSensors) Register(_ context.Context, id string, b expr.Binding) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failures[b.Address()]; err != nil {
		return err
	}
	if _, dup := f.bindings[id]; dup {
		return &expr.SetupError{Sensor: id, Err: fmt.Errorf("id already registered")}
	}
	f.bindings[id] = b
	return nil
}

// Unregister implements expr.SensorCapability.
func (f *FakeSensors) Unregister(_ context.Context, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.bindings, id)
	delete(f.suspended, id)
}

// GetValues implements expr.SensorCapability.
func (f *FakeSensors) GetValues(_ context.Context, id string, now, timespan int64) ([]ir.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bindings[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, expr.ErrUnbound)
	}
	f.calls[id]++
	return slices.Clone(history.Window(f.readings[b.Address()], now, timespan)), nil
}

// AverageRate implements expr.SensorCapability.
func (f *FakeSensors) AverageRate() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rate
}

// StartupTime implements expr.SensorCapability.
func (f *FakeSensors) StartupTime(string) int64 { return 0 }

// Suspend implements expr.Suspender.
func (f *FakeSensors) Suspend(_ context.Context, id string, until int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.suspended[id] = until
}

// Calls returns how many times GetValues ran for id.
func (f *FakeSensors) Calls(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

// TotalCalls returns the number of GetValues calls across all ids.
func (f *FakeSensors) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// Suspended returns the last suspension deadline recorded for id.
func (f *FakeSensors) Suspended(id string) (int64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	until, ok := f.suspended[id]
	return until, ok
}

// Registered returns the bound ids in sorted order.
func (f *FakeSensors) Registered() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.bindings))
	for id := range f.bindings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
