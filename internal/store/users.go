package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

func joinLimits(limits [7]int) string {
	parts := make([]string, 7)
	for i, v := range limits {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func parseLimits(s string) ([7]int, error) {
	var out [7]int
	parts := strings.Split(s, ",")
	if len(parts) != 7 {
		return out, fmt.Errorf("daily_limits must have 7 entries, got %d", len(parts))
	}
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || v < 0 {
			return out, fmt.Errorf("daily_limits entry %d invalid: %q", i, p)
		}
		out[i] = v
	}
	return out, nil
}

// ValidSchedule reports whether s is a well-formed 168-character weekly
// schedule string: one character per hour of the week, each '0' or '1'.
func ValidSchedule(s string) bool {
	if len(s) != 168 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] != '0' && s[i] != '1' {
			return false
		}
	}
	return true
}

func scanUserLimit(row interface {
	Scan(dest ...any) error
}) (*UserLimit, error) {
	var u UserLimit
	var enabled int
	var limitsStr, createdAt, updatedAt string
	if err := row.Scan(&u.ID, &u.Username, &enabled, &u.DailyTotalMinutes, &u.Schedule, &limitsStr, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	u.Enabled = enabled != 0
	limits, err := parseLimits(limitsStr)
	if err != nil {
		return nil, fmt.Errorf("corrupt daily_limits for user %s: %w", u.Username, err)
	}
	u.DailyLimits = limits
	if t, err := parseTime(createdAt); err == nil {
		u.CreatedAt = t
	}
	if t, err := parseTime(updatedAt); err == nil {
		u.UpdatedAt = t
	}
	return &u, nil
}

const userLimitColumns = `id, user, enabled, daily_total, schedule, daily_limits, created_at, updated_at`

// GetUserLimit looks up a user's limit row; returns nil, nil if absent.
func (s *Store) GetUserLimit(ctx context.Context, username string) (*UserLimit, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userLimitColumns+` FROM user_limits WHERE user = ?`, username)
	u, err := scanUserLimit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user limit: %w", err)
	}
	return u, nil
}

// ListUserLimits returns every enrolled user, enabled or not.
func (s *Store) ListUserLimits(ctx context.Context) ([]UserLimit, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userLimitColumns+` FROM user_limits ORDER BY user`)
	if err != nil {
		return nil, fmt.Errorf("list user limits: %w", err)
	}
	defer rows.Close()

	var out []UserLimit
	for rows.Next() {
		u, err := scanUserLimit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user limit: %w", err)
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// ListEnabledUsernames returns just the usernames of enabled users, the
// set the Control Surface and Monitor iterate per tick.
func (s *Store) ListEnabledUsernames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user FROM user_limits WHERE enabled = 1 ORDER BY user`)
	if err != nil {
		return nil, fmt.Errorf("list enabled usernames: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// AddUser enrols a new user. Schedule and daily limits must already be
// validated by the caller (the CLI); the Store enforces it again as a
// defensive boundary check since it is the last writer.
func (s *Store) AddUser(ctx context.Context, u UserLimit) error {
	if !ValidSchedule(u.Schedule) {
		return fmt.Errorf("invalid schedule: must be 168 characters of '0'/'1'")
	}
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		now := formatTime(time.Now())
		_, err := tx.ExecContext(ctx, `
			INSERT INTO user_limits (user, enabled, daily_total, schedule, daily_limits, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, u.Username, boolInt(u.Enabled), u.DailyTotalMinutes, u.Schedule, joinLimits(u.DailyLimits), now, now)
		return err
	})
}

// SetUserEnabled enables/disables a user in place; user rows are never
// deleted, only toggled, so history stays attached to the username.
func (s *Store) SetUserEnabled(ctx context.Context, username string, enabled bool) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE user_limits SET enabled = ?, updated_at = ? WHERE user = ?`,
			boolInt(enabled), formatTime(time.Now()), username)
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return fmt.Errorf("unknown user: %s", username)
		}
		return nil
	})
}

// UpdateSchedule replaces a user's schedule string and per-weekday limits
// (`user edit`, `schedule set`, `schedule import`).
func (s *Store) UpdateSchedule(ctx context.Context, username, schedule string, limits [7]int) error {
	if !ValidSchedule(schedule) {
		return fmt.Errorf("invalid schedule: must be 168 characters of '0'/'1'")
	}
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE user_limits SET schedule = ?, daily_limits = ?, updated_at = ? WHERE user = ?
		`, schedule, joinLimits(limits), formatTime(time.Now()), username)
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return fmt.Errorf("unknown user: %s", username)
		}
		return nil
	})
}

// UpdateDailyTotal sets the legacy aggregate daily_total column (kept for
// display/export compatibility; per-weekday daily_limits is authoritative
// for accounting).
func (s *Store) UpdateDailyTotal(ctx context.Context, username string, minutes int) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE user_limits SET daily_total = ?, updated_at = ? WHERE user = ?`,
			minutes, formatTime(time.Now()), username)
		return err
	})
}
