package store

import (
	"context"
	"fmt"
	"time"
)

// Retention periods applied by Maintenance.
const (
	EventRetention      = 30 * 24 * time.Hour
	SessionRetention    = 90 * 24 * time.Hour
	MessageLogRetention = 7 * 24 * time.Hour
	SeenPIDRetention    = 7 * 24 * time.Hour
)

// MaintenanceResult reports what a maintenance pass deleted, for CLI
// output.
type MaintenanceResult struct {
	EventsDeleted      int64
	SessionsDeleted    int64
	MessagesDeleted    int64
	SeenPIDsDeleted    int64
}

// Maintenance deletes events older than 30 days, sessions older than 90
// days (only closed ones), message-log rows older than 7 days, and
// seen-pid rows older than 7 days, then compacts the file. Daily summaries
// are kept indefinitely. Running it twice with no intervening write
// deletes no additional rows.
func (s *Store) Maintenance(ctx context.Context) (MaintenanceResult, error) {
	var r MaintenanceResult
	var err error

	r.EventsDeleted, err = s.PurgeOldEvents(ctx, EventRetention)
	if err != nil {
		return r, fmt.Errorf("purge events: %w", err)
	}
	r.SessionsDeleted, err = s.PurgeOldSessions(ctx, SessionRetention)
	if err != nil {
		return r, fmt.Errorf("purge sessions: %w", err)
	}
	r.MessagesDeleted, err = s.PurgeOldMessages(ctx, MessageLogRetention)
	if err != nil {
		return r, fmt.Errorf("purge messages: %w", err)
	}
	r.SeenPIDsDeleted, err = s.PurgeStaleSeenPIDs(ctx, SeenPIDRetention)
	if err != nil {
		return r, fmt.Errorf("purge seen pids: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `VACUUM`); err != nil {
		return r, fmt.Errorf("vacuum: %w", err)
	}
	return r, nil
}
