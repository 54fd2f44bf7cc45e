package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// OpenSession inserts a new live Session row (end_time NULL). Spec.md §3
// invariant: exactly one row per (pid, user) may have a null end_time; the
// daemon is responsible for closing the prior row before opening a new one
// for a reused pid.
func (s *Store) OpenSession(ctx context.Context, user, app string, category Category, pid int, start time.Time) (int64, error) {
	var id int64
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (user, app, category, pid, start_time, end_time, duration, end_reason)
			VALUES (?, ?, ?, ?, ?, NULL, NULL, NULL)
		`, user, app, string(category), pid, formatTime(start))
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// CloseSession ends a live session with the given reason.
func (s *Store) CloseSession(ctx context.Context, sessionID int64, end time.Time, reason EndReason) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		var startStr string
		if err := tx.QueryRowContext(ctx, `SELECT start_time FROM sessions WHERE id = ?`, sessionID).Scan(&startStr); err != nil {
			return fmt.Errorf("load session start: %w", err)
		}
		start, err := parseTime(startStr)
		if err != nil {
			return err
		}
		duration := int64(end.Sub(start).Seconds())
		_, err = tx.ExecContext(ctx, `
			UPDATE sessions SET end_time = ?, duration = ?, end_reason = ? WHERE id = ?
		`, formatTime(end), duration, string(reason), sessionID)
		return err
	})
}

// LiveSessionByPID finds the open session for a (user, pid) pair, if any.
func (s *Store) LiveSessionByPID(ctx context.Context, user string, pid int) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user, app, COALESCE(category, ''), pid, start_time, end_time, duration, COALESCE(end_reason, '')
		FROM sessions WHERE user = ? AND pid = ? AND end_time IS NULL
	`, user, pid)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load live session: %w", err)
	}
	return sess, nil
}

func scanSession(row interface{ Scan(dest ...any) error }) (*Session, error) {
	var sess Session
	var category, endTimeStr, endReason, startStr string
	var duration sql.NullInt64
	if err := row.Scan(&sess.ID, &sess.User, &sess.App, &category, &sess.PID, &startStr, &endTimeStr, &duration, &endReason); err != nil {
		return nil, err
	}
	sess.Category = Category(category)
	sess.EndReason = EndReason(endReason)
	if t, err := parseTime(startStr); err == nil {
		sess.StartTime = t
	}
	if endTimeStr != "" {
		if t, err := parseTime(endTimeStr); err == nil {
			sess.EndTime = &t
		}
	}
	if duration.Valid {
		d := duration.Int64
		sess.Duration = &d
	}
	return &sess, nil
}

// ListSessions returns sessions for a user (or all users if user=="") on
// or after `since`, newest first, for `sessions`/`audit`-style CLI output.
func (s *Store) ListSessions(ctx context.Context, user string, since time.Time) ([]Session, error) {
	query := `
		SELECT id, user, app, COALESCE(category, ''), pid, start_time, COALESCE(end_time, ''), duration, COALESCE(end_reason, '')
		FROM sessions WHERE start_time >= ?`
	args := []any{formatTime(since)}
	if user != "" {
		query += ` AND user = ?`
		args = append(args, user)
	}
	query += ` ORDER BY start_time DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		var category, endTimeStr, endReason string
		var duration sql.NullInt64
		var startStr string
		if err := rows.Scan(&sess.ID, &sess.User, &sess.App, &category, &sess.PID, &startStr, &endTimeStr, &duration, &endReason); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.Category = Category(category)
		sess.EndReason = EndReason(endReason)
		if t, err := parseTime(startStr); err == nil {
			sess.StartTime = t
		}
		if endTimeStr != "" {
			if t, err := parseTime(endTimeStr); err == nil {
				sess.EndTime = &t
			}
		}
		if duration.Valid {
			d := duration.Int64
			sess.Duration = &d
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// PurgeOldSessions deletes closed sessions older than retention (default
// 90 days). Open sessions are never purged.
func (s *Store) PurgeOldSessions(ctx context.Context, retention time.Duration) (int64, error) {
	var n int64
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		cutoff := formatTime(time.Now().Add(-retention))
		res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE start_time < ? AND end_time IS NOT NULL`, cutoff)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}
