package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const dailySummaryColumns = `id, date, user, total_time, gaming_time, session_count, warnings_sent, enforcements,
	gaming_active, COALESCE(gaming_started_at, ''), COALESCE(last_poll_at, ''), warned_30, warned_15, warned_5`

func scanDailySummary(row interface{ Scan(dest ...any) error }) (*DailySummary, error) {
	var d DailySummary
	var gamingActive, w30, w15, w5 int
	var startedAt, lastPoll string
	if err := row.Scan(&d.ID, &d.Date, &d.User, &d.TotalTimeSeconds, &d.GamingTimeSeconds, &d.SessionCount,
		&d.WarningsSent, &d.Enforcements, &gamingActive, &startedAt, &lastPoll, &w30, &w15, &w5); err != nil {
		return nil, err
	}
	d.GamingActive = gamingActive != 0
	d.Warned30 = w30 != 0
	d.Warned15 = w15 != 0
	d.Warned5 = w5 != 0
	if startedAt != "" {
		if t, err := parseTime(startedAt); err == nil {
			d.GamingStartedAt = t
		}
	}
	if lastPoll != "" {
		if t, err := parseTime(lastPoll); err == nil {
			d.LastPollAt = t
		}
	}
	return &d, nil
}

// GetOrCreateDailySummary returns today's (date, user) accounting row,
// creating it with zeroed state if it doesn't exist yet. A new row
// implicitly resets warning flags and the gaming-active state, so a
// given row is never carried over or updated across dates.
func (s *Store) GetOrCreateDailySummary(ctx context.Context, date, user string) (*DailySummary, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+dailySummaryColumns+` FROM daily_summary WHERE date = ? AND user = ?`, date, user)
	d, err := scanDailySummary(row)
	if err == nil {
		return d, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("get daily summary: %w", err)
	}

	err = s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO daily_summary (date, user, total_time, gaming_time, session_count,
				warnings_sent, enforcements, gaming_active, warned_30, warned_15, warned_5)
			VALUES (?, ?, 0, 0, 0, 0, 0, 0, 0, 0, 0)
		`, date, user)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create daily summary: %w", err)
	}

	row = s.db.QueryRowContext(ctx, `SELECT `+dailySummaryColumns+` FROM daily_summary WHERE date = ? AND user = ?`, date, user)
	return scanDailySummary(row)
}

// UpdateDailySummary persists the accounting fields the Accounting state
// machine mutated this tick. Invariant 0 <= gaming_time <= total_time is
// the caller's responsibility (accounting package enforces it before
// calling this).
func (s *Store) UpdateDailySummary(ctx context.Context, d DailySummary) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		var startedAt, lastPoll sql.NullString
		if !d.GamingStartedAt.IsZero() {
			startedAt = sql.NullString{String: formatTime(d.GamingStartedAt), Valid: true}
		}
		if !d.LastPollAt.IsZero() {
			lastPoll = sql.NullString{String: formatTime(d.LastPollAt), Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE daily_summary SET
				total_time = ?, gaming_time = ?, session_count = ?, warnings_sent = ?, enforcements = ?,
				gaming_active = ?, gaming_started_at = ?, last_poll_at = ?,
				warned_30 = ?, warned_15 = ?, warned_5 = ?
			WHERE date = ? AND user = ?
		`, d.TotalTimeSeconds, d.GamingTimeSeconds, d.SessionCount, d.WarningsSent, d.Enforcements,
			boolInt(d.GamingActive), startedAt, lastPoll, boolInt(d.Warned30), boolInt(d.Warned15), boolInt(d.Warned5),
			d.Date, d.User)
		return err
	})
}

// DailySummariesSince returns a user's summaries from `since` to today,
// for `history`/`report` CLI output.
func (s *Store) DailySummariesSince(ctx context.Context, user, since string) ([]DailySummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+dailySummaryColumns+` FROM daily_summary WHERE user = ? AND date >= ? ORDER BY date
	`, user, since)
	if err != nil {
		return nil, fmt.Errorf("list daily summaries: %w", err)
	}
	defer rows.Close()

	var out []DailySummary
	for rows.Next() {
		d, err := scanDailySummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan daily summary: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// Today formats t as the local-calendar-day key used throughout the
// schema (YYYY-MM-DD).
func Today(t time.Time) string {
	return t.Format("2006-01-02")
}
