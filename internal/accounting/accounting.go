// Package accounting implements the per-user per-day time-accounting
// state machine: elapsed-time accrual with a suspend/resume cap, warning
// thresholds, and the expiry-then-grace-then-enforcement sequence.
package accounting

import (
	"context"
	"fmt"
	"time"

	"github.com/aaronsb/playtimed/internal/store"
)

// State is the materialised accounting state for a user's day, derived
// from the Daily Summary row rather than stored as a single column.
type State string

const (
	StateAvailable State = "available"
	StateWarning   State = "warning"
	StateGrace     State = "grace"
	StateExpired   State = "expired"
)

// Decision is what a Tick decided needs to happen this round, for the
// Daemon to execute against the Router and Enforcer.
type Decision struct {
	State              State
	Intentions         []Intention
	RemainingSeconds    int64
	RequestGracePeriod bool
	GraceSeconds       int
	TerminateAllGaming bool // fires at the end of the grace sleep
}

// Intention is one notification to route, with the context fields the
// Router substitutes into templates.
type Intention struct {
	Name         string // process_start, time_warning_30, time_expired, grace_period, ...
	TimeLeft     int64
	TimeUsed     int64
	TimeLimit    int64
}

// Accounting drives the Daily Summary row for one (user, date) pair.
type Accounting struct {
	st *store.Store
}

func New(st *store.Store) *Accounting {
	return &Accounting{st: st}
}

// Tick advances the accounting state machine by one scan tick for a
// user; gamingNow is the in-tick determination of whether the user has
// an active gaming process or browser domain. dailyLimitMinutes
// is today's weekday limit from UserLimit.DailyLimits.
func (a *Accounting) Tick(ctx context.Context, user string, gamingNow bool, dailyLimitMinutes, strictGraceSeconds int, pollInterval time.Duration, now time.Time) (Decision, error) {
	date := store.Today(now)
	d, err := a.st.GetOrCreateDailySummary(ctx, date, user)
	if err != nil {
		return Decision{}, fmt.Errorf("load daily summary for %s/%s: %w", user, date, err)
	}

	wasGaming := d.GamingActive
	if wasGaming && !d.LastPollAt.IsZero() {
		elapsed := now.Sub(d.LastPollAt)
		maxElapsed := 2 * pollInterval
		if elapsed > maxElapsed {
			elapsed = maxElapsed
		}
		if elapsed < 0 {
			elapsed = 0
		}
		secs := int64(elapsed.Seconds())
		d.TotalTimeSeconds += secs
		d.GamingTimeSeconds += secs
		if d.GamingTimeSeconds > d.TotalTimeSeconds {
			d.GamingTimeSeconds = d.TotalTimeSeconds
		}
		if err := a.st.AddHourlyActivity(ctx, date, now.Hour(), user, secs, secs); err != nil {
			return Decision{}, fmt.Errorf("add hourly activity for %s: %w", user, err)
		}
	}

	d.GamingActive = gamingNow
	d.LastPollAt = now
	if gamingNow && d.GamingStartedAt.IsZero() {
		d.GamingStartedAt = now
	}
	if !gamingNow {
		d.GamingStartedAt = time.Time{}
	}

	limitSeconds := int64(dailyLimitMinutes) * 60
	remaining := limitSeconds - d.GamingTimeSeconds
	remainingMinutes := remaining / 60

	decision := Decision{RemainingSeconds: remaining}

	if gamingNow {
		if remainingMinutes <= 0 {
			decision.State = StateExpired
			decision.Intentions = append(decision.Intentions, Intention{
				Name: "time_expired", TimeLeft: remaining, TimeUsed: d.GamingTimeSeconds, TimeLimit: limitSeconds,
			})
			decision.RequestGracePeriod = true
			decision.GraceSeconds = strictGraceSeconds
			decision.Intentions = append(decision.Intentions, Intention{
				Name: "grace_period", TimeLeft: remaining, TimeUsed: d.GamingTimeSeconds, TimeLimit: limitSeconds,
			})
			decision.TerminateAllGaming = true
			d.Enforcements++
		} else {
			// Three independent checks, not a mutually-exclusive switch:
			// a single tick's capped elapsed time can cross more than one
			// threshold (small daily limits, a slow poll interval), and
			// each crossed threshold must fire its own warning exactly
			// once, matching original_source/main.py's three independent
			// ifs.
			if remainingMinutes <= 30 && !d.Warned30 {
				d.Warned30 = true
				decision.Intentions = append(decision.Intentions, Intention{Name: "time_warning_30", TimeLeft: remaining, TimeUsed: d.GamingTimeSeconds, TimeLimit: limitSeconds})
				d.WarningsSent++
			}
			if remainingMinutes <= 15 && !d.Warned15 {
				d.Warned15 = true
				decision.Intentions = append(decision.Intentions, Intention{Name: "time_warning_15", TimeLeft: remaining, TimeUsed: d.GamingTimeSeconds, TimeLimit: limitSeconds})
				d.WarningsSent++
			}
			if remainingMinutes <= 5 && !d.Warned5 {
				d.Warned5 = true
				decision.Intentions = append(decision.Intentions, Intention{Name: "time_warning_5", TimeLeft: remaining, TimeUsed: d.GamingTimeSeconds, TimeLimit: limitSeconds})
				d.WarningsSent++
			}
			if remainingMinutes <= 30 {
				decision.State = StateWarning
			} else {
				decision.State = StateAvailable
			}
		}
	} else {
		decision.State = StateAvailable
		if remainingMinutes <= 0 {
			decision.State = StateExpired
		}
	}

	if err := a.st.UpdateDailySummary(ctx, *d); err != nil {
		return Decision{}, fmt.Errorf("update daily summary for %s/%s: %w", user, date, err)
	}
	return decision, nil
}

// OutsideAllowedHours reports whether the schedule forbids gaming right
// now, for the "newly-started pid" check: it runs once per new gaming
// pid, not continuously, so the minute ticking over mid-session never
// retroactively kills a running game.
func OutsideAllowedHours(schedule string, now time.Time) bool {
	if len(schedule) != 168 {
		return false
	}
	weekday := int(now.Weekday()+6) % 7 // time.Sunday=0 -> our Sunday=6, Monday=0
	idx := weekday*24 + now.Hour()
	return schedule[idx] == '0'
}

// RecordSessionEnd marks a gaming session row as finished when a tick
// determines the pid is no longer gaming (naturally or via enforcement).
func RecordSessionEnd(ctx context.Context, st *store.Store, sessionID int64, now time.Time, reason store.EndReason) error {
	return st.CloseSession(ctx, sessionID, now, reason)
}
