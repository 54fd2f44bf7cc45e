package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// ListEnabledFor returns enabled patterns owned by user or global (owner
// IS NULL), which is the set the Pattern Engine matches against for that
// user.
func (s *Store) ListEnabledFor(ctx context.Context, user string) ([]Pattern, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pattern, name, COALESCE(category, ''), pattern_type, COALESCE(browser, ''),
		       monitor_state, COALESCE(owner, ''), enabled, cpu_threshold,
		       COALESCE(discovered_cmdline, ''), unique_pid_count, total_runtime_seconds,
		       COALESCE(last_seen, ''), COALESCE(notes, ''), created_at, updated_at
		FROM process_patterns
		WHERE enabled = 1 AND (owner IS NULL OR owner = ?)
		ORDER BY (owner IS NULL), monitor_state, name, id
	`, user)
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	defer rows.Close()
	return scanPatterns(rows)
}

// ListAll returns every pattern row for admin/CLI listing, global
// patterns first, grouped by monitor state, then name.
func (s *Store) ListAll(ctx context.Context) ([]Pattern, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pattern, name, COALESCE(category, ''), pattern_type, COALESCE(browser, ''),
		       monitor_state, COALESCE(owner, ''), enabled, cpu_threshold,
		       COALESCE(discovered_cmdline, ''), unique_pid_count, total_runtime_seconds,
		       COALESCE(last_seen, ''), COALESCE(notes, ''), created_at, updated_at
		FROM process_patterns
		ORDER BY (owner IS NULL), monitor_state, name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list all patterns: %w", err)
	}
	defer rows.Close()
	return scanPatterns(rows)
}

// ListByState returns patterns in a given monitor_state, used by the
// `discover list` CLI command and by Discovery's "no catalogue entry
// already exists" check.
func (s *Store) ListByState(ctx context.Context, state MonitorState) ([]Pattern, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pattern, name, COALESCE(category, ''), pattern_type, COALESCE(browser, ''),
		       monitor_state, COALESCE(owner, ''), enabled, cpu_threshold,
		       COALESCE(discovered_cmdline, ''), unique_pid_count, total_runtime_seconds,
		       COALESCE(last_seen, ''), COALESCE(notes, ''), created_at, updated_at
		FROM process_patterns
		WHERE monitor_state = ?
		ORDER BY (owner IS NULL), name, id
	`, string(state))
	if err != nil {
		return nil, fmt.Errorf("list patterns by state: %w", err)
	}
	defer rows.Close()
	return scanPatterns(rows)
}

func scanPatterns(rows *sql.Rows) ([]Pattern, error) {
	var out []Pattern
	for rows.Next() {
		var p Pattern
		var category, browser, owner, discoveredCmdline, lastSeen, notes string
		var monitorState, patternType string
		var enabled int
		var createdAt, updatedAt string
		if err := rows.Scan(&p.ID, &p.PatternText, &p.DisplayName, &category, &patternType, &browser,
			&monitorState, &owner, &enabled, &p.CPUThreshold, &discoveredCmdline, &p.UniquePIDCount,
			&p.TotalRuntimeSeconds, &lastSeen, &notes, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		p.Category = Category(category)
		p.PatternType = PatternType(patternType)
		p.Browser = browser
		p.MonitorState = MonitorState(monitorState)
		p.Owner = owner
		p.Enabled = enabled != 0
		p.DiscoveredCmdline = discoveredCmdline
		p.Notes = notes
		if lastSeen != "" {
			if t, err := parseTime(lastSeen); err == nil {
				p.LastSeen = t
			}
		}
		if t, err := parseTime(createdAt); err == nil {
			p.CreatedAt = t
		}
		if t, err := parseTime(updatedAt); err == nil {
			p.UpdatedAt = t
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// FindByNameAndOwner looks up a catalogue entry by exact display name and
// owner, used by Discovery's dedup check and the catch-all auto-discovery
// rule.
func (s *Store) FindByNameAndOwner(ctx context.Context, name, owner string) (*Pattern, error) {
	all, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if strings.EqualFold(all[i].DisplayName, name) && all[i].Owner == owner {
			return &all[i], nil
		}
	}
	return nil, nil
}

// AddPattern inserts a new catalogue entry (admin `patterns add`, or
// Discovery/catch-all auto-discovery).
func (s *Store) AddPattern(ctx context.Context, p Pattern) (int64, error) {
	var id int64
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		now := formatTime(time.Now())
		var category, browser, owner sql.NullString
		if p.Category != "" {
			category = sql.NullString{String: string(p.Category), Valid: true}
		}
		if p.Browser != "" {
			browser = sql.NullString{String: p.Browser, Valid: true}
		}
		if p.Owner != "" {
			owner = sql.NullString{String: p.Owner, Valid: true}
		}
		cpuThreshold := p.CPUThreshold
		if p.PatternType == PatternBrowserDomain {
			cpuThreshold = 0
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO process_patterns
				(pattern, name, category, pattern_type, browser, monitor_state, owner,
				 enabled, cpu_threshold, discovered_cmdline, notes, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, p.PatternText, p.DisplayName, category, string(p.PatternType), browser,
			string(p.MonitorState), owner, boolInt(p.Enabled), cpuThreshold,
			p.DiscoveredCmdline, p.Notes, now, now)
		if err != nil {
			return fmt.Errorf("insert pattern: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// SetMonitorState transitions a pattern's state (`promote`, `ignore`,
// `disallow`). Idempotent: re-applying the same transition is a no-op
// write.
func (s *Store) SetMonitorState(ctx context.Context, id int64, state MonitorState, category Category) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		var cat sql.NullString
		if category != "" {
			cat = sql.NullString{String: string(category), Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE process_patterns SET monitor_state = ?, category = COALESCE(?, category), updated_at = ?
			WHERE id = ?
		`, string(state), cat, formatTime(time.Now()), id)
		return err
	})
}

// SetEnabled toggles a pattern's enabled flag.
func (s *Store) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE process_patterns SET enabled = ?, updated_at = ? WHERE id = ?`,
			boolInt(enabled), formatTime(time.Now()), id)
		return err
	})
}

// SetNotes updates the free-text notes field (`patterns note`).
func (s *Store) SetNotes(ctx context.Context, id int64, notes string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE process_patterns SET notes = ?, updated_at = ? WHERE id = ?`,
			notes, formatTime(time.Now()), id)
		return err
	})
}

// DeletePattern removes a catalogue entry; seen_pids rows cascade.
func (s *Store) DeletePattern(ctx context.Context, id int64) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM process_patterns WHERE id = ?`, id)
		return err
	})
}

// RecordMatch applies the Pattern Engine's side effects for a match:
// insert a seen-pid row if new, bump last_seen, and add
// pollInterval seconds to total_runtime_seconds when cpuPercent meets the
// pattern's threshold (or unconditionally for browser observations, whose
// threshold is always zero).
func (s *Store) RecordMatch(ctx context.Context, patternID int64, pid int, cpuPercent float64, pollInterval time.Duration) (isNewPID bool, err error) {
	err = s.WithTx(ctx, func(tx *sql.Tx) error {
		now := formatTime(time.Now())

		var threshold float64
		if err := tx.QueryRowContext(ctx, `SELECT cpu_threshold FROM process_patterns WHERE id = ?`, patternID).Scan(&threshold); err != nil {
			return fmt.Errorf("load pattern threshold: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO seen_pids (pattern_id, pid, first_seen) VALUES (?, ?, ?)
		`, patternID, pid, now)
		if err != nil {
			return fmt.Errorf("insert seen_pid: %w", err)
		}
		n, _ := res.RowsAffected()
		isNewPID = n > 0

		runtimeDelta := int64(0)
		if cpuPercent >= threshold {
			runtimeDelta = int64(pollInterval.Seconds())
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE process_patterns
			SET last_seen = ?,
			    unique_pid_count = unique_pid_count + ?,
			    total_runtime_seconds = total_runtime_seconds + ?,
			    updated_at = ?
			WHERE id = ?
		`, now, boolInt(isNewPID), runtimeDelta, now, patternID)
		return err
	})
	return isNewPID, err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// PurgeStaleSeenPIDs deletes seen_pids rows older than retention (default
// 7 days) since pids are recycled by the OS.
func (s *Store) PurgeStaleSeenPIDs(ctx context.Context, retention time.Duration) (int64, error) {
	var n int64
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		cutoff := formatTime(time.Now().Add(-retention))
		res, err := tx.ExecContext(ctx, `DELETE FROM seen_pids WHERE first_seen < ?`, cutoff)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}
