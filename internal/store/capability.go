package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/roach88/senselogic/internal/expr"
)

var (
	_ expr.SensorCapability = (*Store)(nil)
	_ expr.Suspender        = (*Store)(nil)
)

// Recognized leaf configuration keys. Anything else is a configuration error.
var configKeys = map[string]func(string) error{
	"unit":       func(string) error { return nil },
	"accuracy":   func(string) error { return nil },
	"rate":       positiveFloat,
	"startup_ms": nonNegativeInt,
}

func positiveFloat(v string) error {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return fmt.Errorf("must be a positive number")
	}
	return nil
}

func nonNegativeInt(v string) error {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return fmt.Errorf("must be a non-negative integer")
	}
	return nil
}

// validateConfig checks every option a leaf declares.
func validateConfig(b expr.Binding) error {
	keys := make([]string, 0, len(b.Config))
	for k := range b.Config {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		check, ok := configKeys[k]
		if !ok {
			return &expr.ConfigurationError{Sensor: b.Address(), Key: k, Message: "unsupported option"}
		}
		if err := check(b.Config[k]); err != nil {
			return &expr.ConfigurationError{Sensor: b.Address(), Key: k, Message: err.Error()}
		}
	}
	return nil
}

// Register implements expr.SensorCapability.
func (s *Store) Register(ctx context.Context, id string, b expr.Binding) error {
	if b.Entity == "" || b.ValuePath == "" {
		return &expr.ConfigurationError{Sensor: b.Address(), Message: "incomplete sensor address"}
	}
	if err := validateConfig(b); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.bindings[id]; dup {
		return &expr.SetupError{Sensor: id, Err: fmt.Errorf("id already bound")}
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO bindings (id, sensor, config, registered_at)
		VALUES (?, ?, ?, ?)
	`, id, b.Address(), b.Query(), s.now()); err != nil {
		return &expr.SetupError{Sensor: id, Err: err}
	}

	var startup int64
	if v, ok := b.Config["startup_ms"]; ok {
		startup, _ = strconv.ParseInt(v, 10, 64)
	}
	s.bindings[id] = binding{sensor: b.Address(), config: b.Config, startupMS: startup}
	if s.bySensor[b.Address()] == nil {
		s.bySensor[b.Address()] = make(map[string]bool)
	}
	s.bySensor[b.Address()][id] = true
	return nil
}

// Unregister implements expr.SensorCapability. Unknown ids are ignored.
func (s *Store) Unregister(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bindings[id]
	if !ok {
		return
	}
	delete(s.bindings, id)
	delete(s.bySensor[b.sensor], id)
	if len(s.bySensor[b.sensor]) == 0 {
		delete(s.bySensor, b.sensor)
	}
	// Bindings are rebuilt on open; a failed delete only leaves a stale row.
	_, _ = s.db.ExecContext(ctx, `DELETE FROM bindings WHERE id = ?`, id)
}

// StartupTime implements expr.SensorCapability using the leaf's startup_ms
// option.
func (s *Store) StartupTime(id string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bindings[id].startupMS
}

// Suspend implements expr.Suspender by recording the resume time.
func (s *Store) Suspend(ctx context.Context, id string, until int64) {
	s.mu.RLock()
	_, ok := s.bindings[id]
	s.mu.RUnlock()
	if !ok {
		return
	}
	_, _ = s.db.ExecContext(ctx, `UPDATE bindings SET suspended_until = ? WHERE id = ?`, until, id)
}

// BindingRecord is one persisted leaf binding.
type BindingRecord struct {
	ID             string
	Sensor         string
	Config         string
	RegisteredAt   int64
	SuspendedUntil *int64
}

// Bindings lists the current leaf bindings sorted by id.
func (s *Store) Bindings(ctx context.Context) ([]BindingRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sensor, config, registered_at, suspended_until
		FROM bindings ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list bindings: %w", err)
	}
	defer rows.Close()

	var out []BindingRecord
	for rows.Next() {
		var r BindingRecord
		if err := rows.Scan(&r.ID, &r.Sensor, &r.Config, &r.RegisteredAt, &r.SuspendedUntil); err != nil {
			return nil, fmt.Errorf("scan binding: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
