package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RecordMessage appends a message-log row for a sent (or attempted)
// notification.
func (s *Store) RecordMessage(ctx context.Context, m MessageLogRow) (int64, error) {
	var id int64
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		ts := m.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		var templateID sql.NullInt64
		if m.TemplateID != 0 {
			templateID = sql.NullInt64{Int64: m.TemplateID, Valid: true}
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO message_log (timestamp, user, intention, template_id, rendered_title, rendered_body, notification_id, backend)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, formatTime(ts), m.User, m.Intention, templateID, m.RenderedTitle, m.RenderedBody, m.NotificationID, m.Backend)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// LastNotificationID returns the backend notification id of the most
// recent message sent for an intention, for `replace_previous` support.
// Returns 0, nil if none exists.
func (s *Store) LastNotificationID(ctx context.Context, intention string) (int64, error) {
	var id sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT notification_id FROM message_log WHERE intention = ? ORDER BY id DESC LIMIT 1
	`, intention).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("last notification id: %w", err)
	}
	if !id.Valid {
		return 0, nil
	}
	return id.Int64, nil
}

// ListMessages returns the most recent message-log rows for a user (all
// users if user is ""), newest first, capped at limit (`message list`).
func (s *Store) ListMessages(ctx context.Context, user string, limit int) ([]MessageLogRow, error) {
	query := `SELECT id, timestamp, user, intention, COALESCE(template_id, 0), rendered_title, rendered_body, COALESCE(notification_id, 0), backend FROM message_log`
	args := []any{}
	if user != "" {
		query += ` WHERE user = ?`
		args = append(args, user)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []MessageLogRow
	for rows.Next() {
		var m MessageLogRow
		var ts string
		if err := rows.Scan(&m.ID, &ts, &m.User, &m.Intention, &m.TemplateID, &m.RenderedTitle, &m.RenderedBody, &m.NotificationID, &m.Backend); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if parsed, err := parseTime(ts); err == nil {
			m.Timestamp = parsed
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// PurgeOldMessages deletes message-log rows older than retention (default
// 7 days).
func (s *Store) PurgeOldMessages(ctx context.Context, retention time.Duration) (int64, error) {
	var n int64
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		cutoff := formatTime(time.Now().Add(-retention))
		res, err := tx.ExecContext(ctx, `DELETE FROM message_log WHERE timestamp < ?`, cutoff)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}
