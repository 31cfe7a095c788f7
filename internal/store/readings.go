package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/senselogic/internal/expr"
	"github.com/roach88/senselogic/internal/ir"
)

// rateWindow is the span AverageRate looks back over.
const rateWindow = int64(60_000)

// Append stores a reading for sensor and signals every id bound to it.
func (s *Store) Append(ctx context.Context, sensor string, r ir.Reading) error {
	if r.Value == nil {
		return fmt.Errorf("append %s: nil value", sensor)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO readings (sensor, ts, value) VALUES (?, ?, ?)`,
		sensor, r.Timestamp, r.Value.String())
	if err != nil {
		return fmt.Errorf("append %s: %w", sensor, err)
	}

	s.mu.RLock()
	notify := s.notify
	ids := make([]string, 0, len(s.bySensor[sensor]))
	for id := range s.bySensor[sensor] {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	if notify != nil && len(ids) > 0 {
		notify(ids...)
	}
	return nil
}

// Window returns readings of sensor with now-timespan <= ts <= now, newest
// first. A zero timespan returns only the newest reading at or before now.
func (s *Store) Window(ctx context.Context, sensor string, now, timespan int64) ([]ir.Reading, error) {
	var rows *sql.Rows
	var err error
	if timespan == 0 {
		rows, err = s.db.QueryContext(ctx, `
			SELECT value, ts FROM readings
			WHERE sensor = ? AND ts <= ?
			ORDER BY ts DESC, seq DESC
			LIMIT 1
		`, sensor, now)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT value, ts FROM readings
			WHERE sensor = ? AND ts >= ? AND ts <= ?
			ORDER BY ts DESC, seq DESC
		`, sensor, now-timespan, now)
	}
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", sensor, err)
	}
	defer rows.Close()

	out := []ir.Reading{}
	for rows.Next() {
		var text string
		var ts int64
		if err := rows.Scan(&text, &ts); err != nil {
			return nil, fmt.Errorf("scan %s: %w", sensor, err)
		}
		v, err := ir.ParseLiteral(text)
		if err != nil {
			return nil, fmt.Errorf("decode %s at %d: %w", sensor, ts, err)
		}
		out = append(out, ir.Reading{Value: v, Timestamp: ts})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", sensor, err)
	}
	return out, nil
}

// GetValues implements expr.SensorCapability for a bound leaf id.
func (s *Store) GetValues(ctx context.Context, id string, now, timespan int64) ([]ir.Reading, error) {
	s.mu.RLock()
	b, ok := s.bindings[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, expr.ErrUnbound)
	}
	return s.Window(ctx, b.sensor, now, timespan)
}

// AverageRate implements expr.SensorCapability: readings per second across
// all sensors over the last minute.
func (s *Store) AverageRate() float64 {
	now := s.now()
	var n int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM readings WHERE ts > ? AND ts <= ?`,
		now-rateWindow, now).Scan(&n)
	if err != nil {
		return 0
	}
	return float64(n) / float64(rateWindow/1000)
}

// Prune deletes readings older than before and returns how many were removed.
func (s *Store) Prune(ctx context.Context, before int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM readings WHERE ts < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("prune: %w", err)
	}
	return res.RowsAffected()
}

// Sensors lists every sensor address with at least one reading, sorted.
func (s *Store) Sensors(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT sensor FROM readings ORDER BY sensor`)
	if err != nil {
		return nil, fmt.Errorf("list sensors: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var sensor string
		if err := rows.Scan(&sensor); err != nil {
			return nil, fmt.Errorf("scan sensor: %w", err)
		}
		out = append(out, sensor)
	}
	return out, rows.Err()
}
