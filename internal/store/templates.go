package store

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"time"
)

// RandomTemplate picks a uniformly-random enabled template variant for an
// intention, or nil if none exist.
func (s *Store) RandomTemplate(ctx context.Context, intention string) (*MessageTemplate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, intention, variant, title, body, COALESCE(icon, ''), COALESCE(urgency, 'normal'), enabled, created_at
		FROM message_templates WHERE intention = ? AND enabled = 1
	`, intention)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()

	var candidates []MessageTemplate
	for rows.Next() {
		var t MessageTemplate
		var enabled int
		var urgency, createdAt string
		if err := rows.Scan(&t.ID, &t.Intention, &t.Variant, &t.Title, &t.Body, &t.Icon, &urgency, &enabled, &createdAt); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		t.Urgency = Urgency(urgency)
		t.Enabled = enabled != 0
		if ts, err := parseTime(createdAt); err == nil {
			t.CreatedAt = ts
		}
		candidates = append(candidates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	return &candidates[rand.Intn(len(candidates))], nil
}

// ListTemplates returns every template (admin `message list`).
func (s *Store) ListTemplates(ctx context.Context) ([]MessageTemplate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, intention, variant, title, body, COALESCE(icon, ''), COALESCE(urgency, 'normal'), enabled, created_at
		FROM message_templates ORDER BY intention, variant
	`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []MessageTemplate
	for rows.Next() {
		var t MessageTemplate
		var enabled int
		var urgency, createdAt string
		if err := rows.Scan(&t.ID, &t.Intention, &t.Variant, &t.Title, &t.Body, &t.Icon, &urgency, &enabled, &createdAt); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		t.Urgency = Urgency(urgency)
		t.Enabled = enabled != 0
		if ts, err := parseTime(createdAt); err == nil {
			t.CreatedAt = ts
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// AddTemplate inserts a new (intention, variant) template (`message add`).
func (s *Store) AddTemplate(ctx context.Context, t MessageTemplate) (int64, error) {
	var id int64
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO message_templates (intention, variant, title, body, icon, urgency, enabled, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, t.Intention, t.Variant, t.Title, t.Body, t.Icon, string(t.Urgency), boolInt(t.Enabled), formatTime(time.Now()))
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}
