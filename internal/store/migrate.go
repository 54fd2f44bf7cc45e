package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrate brings the database at db up to the current schema. It is
// idempotent: running it twice against the same database leaves the
// same schema and row set as running it once.
//
// Steps: create any missing tables/indexes, add the daily_limits column
// to an older user_limits table, synthesise derived columns from legacy
// ones, and seed the configuration singletons and default message
// templates if none exist yet. Other existing tables are not altered, so
// a column missing from one of them is not added.
func Migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, baseSchema); err != nil {
		return fmt.Errorf("apply base schema: %w", err)
	}

	if err := migrateLegacyUserLimits(ctx, tx); err != nil {
		return fmt.Errorf("migrate legacy user limits: %w", err)
	}

	if err := seedDiscoveryConfig(ctx, tx); err != nil {
		return fmt.Errorf("seed discovery config: %w", err)
	}

	if err := seedDaemonConfig(ctx, tx); err != nil {
		return fmt.Errorf("seed daemon config: %w", err)
	}

	if err := seedTemplates(ctx, tx); err != nil {
		return fmt.Errorf("seed message templates: %w", err)
	}

	return tx.Commit()
}

// legacySchedule synthesises a 168-char schedule string from legacy
// weekday/weekend start/end hour ranges, marking each hour allowed iff
// start <= hour < end for the matching day type.
func legacySchedule(weekdayStart, weekdayEnd, weekendStart, weekendEnd int) string {
	b := make([]byte, 168)
	for day := 0; day < 7; day++ {
		start, end := weekdayStart, weekdayEnd
		if day >= 5 { // Saturday=5, Sunday=6
			start, end = weekendStart, weekendEnd
		}
		for hour := 0; hour < 24; hour++ {
			idx := day*24 + hour
			if hour >= start && hour < end {
				b[idx] = '1'
			} else {
				b[idx] = '0'
			}
		}
	}
	return string(b)
}

// migrateLegacyUserLimits adds any columns an older user_limits table is
// missing and backfills them: a single legacy gaming-minutes-per-day value
// expands to seven identical per-day limits, and legacy weekday/weekend
// start/end hour columns expand into a schedule string.
func migrateLegacyUserLimits(ctx context.Context, tx *sql.Tx) error {
	cols, err := tableColumns(ctx, tx, "user_limits")
	if err != nil {
		return err
	}

	if !cols["daily_limits"] {
		if _, err := tx.ExecContext(ctx,
			`ALTER TABLE user_limits ADD COLUMN daily_limits TEXT NOT NULL DEFAULT ''`); err != nil {
			return err
		}
		// Backfill from the legacy single daily_total: seven identical limits.
		if _, err := tx.ExecContext(ctx, `
			UPDATE user_limits SET daily_limits =
				daily_total || ',' || daily_total || ',' || daily_total || ',' ||
				daily_total || ',' || daily_total || ',' || daily_total || ',' || daily_total
			WHERE daily_limits = '' OR daily_limits IS NULL
		`); err != nil {
			return err
		}
	}

	if cols["weekday_start"] && cols["weekday_end"] && cols["weekend_start"] && cols["weekend_end"] && !cols["schedule_migrated"] {
		rows, err := tx.QueryContext(ctx, `SELECT id, weekday_start, weekday_end, weekend_start, weekend_end FROM user_limits`)
		if err != nil {
			return err
		}
		type legacyRow struct {
			id                                   int64
			ws, we, ss, se                       int
		}
		var legacy []legacyRow
		for rows.Next() {
			var r legacyRow
			if err := rows.Scan(&r.id, &r.ws, &r.we, &r.ss, &r.se); err != nil {
				rows.Close()
				return err
			}
			legacy = append(legacy, r)
		}
		rows.Close()

		for _, r := range legacy {
			sched := legacySchedule(r.ws, r.we, r.ss, r.se)
			if _, err := tx.ExecContext(ctx, `UPDATE user_limits SET schedule = ? WHERE id = ? AND (schedule = '' OR schedule IS NULL)`, sched, r.id); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, `ALTER TABLE user_limits ADD COLUMN schedule_migrated INTEGER DEFAULT 1`); err != nil {
			return err
		}
	}

	// Any row still missing a schedule gets the all-allowed default so the
	// invariant len(schedule)==168 always holds.
	allOnes := make([]byte, 168)
	for i := range allOnes {
		allOnes[i] = '1'
	}
	if _, err := tx.ExecContext(ctx, `UPDATE user_limits SET schedule = ? WHERE schedule IS NULL OR length(schedule) != 168`, string(allOnes)); err != nil {
		return err
	}

	return nil
}

func tableColumns(ctx context.Context, tx *sql.Tx, table string) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

func seedDiscoveryConfig(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO discovery_config (key, value, description) VALUES
			('enabled', '1', 'Enable automatic process discovery'),
			('cpu_threshold', '25', 'Minimum CPU% to consider for discovery'),
			('sample_window_seconds', '120', 'How long to observe before flagging'),
			('min_samples', '3', 'Minimum samples above threshold to flag')
	`)
	return err
}

func seedDaemonConfig(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO daemon_config (key, value, description) VALUES
			('mode', 'normal', 'Daemon mode: normal, passthrough, strict'),
			('strict_grace_seconds', '30', 'Grace period before terminating in strict mode')
	`)
	return err
}

func seedTemplates(ctx context.Context, tx *sql.Tx) error {
	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM message_templates`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	for _, t := range defaultTemplates {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO message_templates (intention, variant, title, body, icon, urgency, enabled, created_at)
			VALUES (?, ?, ?, ?, ?, ?, 1, datetime('now'))
		`, t.Intention, t.Variant, t.Title, t.Body, t.Icon, string(t.Urgency)); err != nil {
			return err
		}
	}
	return nil
}
