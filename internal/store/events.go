package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RecordEvent appends one row to the audit log. Never mutated, never
// deleted except by Maintenance.
func (s *Store) RecordEvent(ctx context.Context, e Event) (int64, error) {
	var id int64
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		ts := e.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO events (timestamp, user, event_type, app, category, details, pid)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, formatTime(ts), e.User, e.EventType, e.App, string(e.Category), e.Details, e.PID)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// ListEvents returns events for a user (or all, if user=="") since a
// given time, newest first, for `audit` CLI output.
func (s *Store) ListEvents(ctx context.Context, user string, since time.Time) ([]Event, error) {
	query := `SELECT id, timestamp, user, event_type, COALESCE(app, ''), COALESCE(category, ''), COALESCE(details, ''), COALESCE(pid, 0) FROM events WHERE timestamp >= ?`
	args := []any{formatTime(since)}
	if user != "" {
		query += ` AND user = ?`
		args = append(args, user)
	}
	query += ` ORDER BY timestamp DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var category, ts string
		if err := rows.Scan(&e.ID, &ts, &e.User, &e.EventType, &e.App, &category, &e.Details, &e.PID); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Category = Category(category)
		if t, err := parseTime(ts); err == nil {
			e.Timestamp = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// PurgeOldEvents deletes events older than retention (default 30 days).
func (s *Store) PurgeOldEvents(ctx context.Context, retention time.Duration) (int64, error) {
	var n int64
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		cutoff := formatTime(time.Now().Add(-retention))
		res, err := tx.ExecContext(ctx, `DELETE FROM events WHERE timestamp < ?`, cutoff)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}
