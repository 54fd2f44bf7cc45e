package store

import (
	"context"
	"database/sql"
	"fmt"
)

// AddHourlyActivity accumulates elapsed gaming/total seconds into the hour
// they fall in, creating the row if needed. Feeds the `heatmap` view.
func (s *Store) AddHourlyActivity(ctx context.Context, date string, hour int, user string, gamingSeconds, totalSeconds int64) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO hourly_activity (date, hour, user, gaming_seconds, total_seconds)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(date, hour, user) DO UPDATE SET
				gaming_seconds = gaming_seconds + excluded.gaming_seconds,
				total_seconds = total_seconds + excluded.total_seconds
		`, date, hour, user, gamingSeconds, totalSeconds)
		return err
	})
}

// HourlyActivitySince returns the per-hour rows for a user from `since`
// (inclusive, YYYY-MM-DD) for heat-map rendering.
func (s *Store) HourlyActivitySince(ctx context.Context, user, since string) ([]HourlyActivity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, hour, user, gaming_seconds, total_seconds
		FROM hourly_activity WHERE user = ? AND date >= ?
		ORDER BY date, hour
	`, user, since)
	if err != nil {
		return nil, fmt.Errorf("list hourly activity: %w", err)
	}
	defer rows.Close()

	var out []HourlyActivity
	for rows.Next() {
		var h HourlyActivity
		if err := rows.Scan(&h.ID, &h.Date, &h.Hour, &h.User, &h.GamingSeconds, &h.TotalSeconds); err != nil {
			return nil, fmt.Errorf("scan hourly activity: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
