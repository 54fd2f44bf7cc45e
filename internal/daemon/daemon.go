// Package daemon wires every component into the single per-host poll
// loop: control surface reload, then for each user the process scan
// (with the terminations and notifications it triggers), the browser
// scan, accounting, and any expiry enforcement, in that order.
package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/aaronsb/playtimed/internal/accounting"
	"github.com/aaronsb/playtimed/internal/browser"
	"github.com/aaronsb/playtimed/internal/control"
	"github.com/aaronsb/playtimed/internal/discovery"
	"github.com/aaronsb/playtimed/internal/enforcer"
	"github.com/aaronsb/playtimed/internal/patternengine"
	"github.com/aaronsb/playtimed/internal/procmon"
	"github.com/aaronsb/playtimed/internal/router"
	"github.com/aaronsb/playtimed/internal/store"
	"github.com/aaronsb/playtimed/pkg/logger"
)

// BrowserResolverFactory builds (or looks up) the per-user browser
// resolver, since each user's windows live on their own session bus.
// Returning nil disables browser scanning for that user (e.g. headless).
type BrowserResolverFactory func(user string) *browser.Resolver

// Daemon is the orchestrator: every package above is constructed once at
// startup and driven by a single Scheduler tick.
type Daemon struct {
	st       *store.Store
	control  *control.Surface
	engine   *patternengine.Engine
	disco    *discovery.Pipeline
	monitor  *procmon.Monitor
	account  *accounting.Accounting
	enforce  *enforcer.Enforcer
	route    *router.Router
	browsers BrowserResolverFactory
	log      *logger.Logger

	pollInterval time.Duration

	// liveSessions[user][pid] tracks the open Session row id so ended
	// sessions can be closed with the right reason.
	liveSessions map[string]map[int]int64
}

// Deps bundles the already-constructed collaborators; Daemon itself
// performs no construction beyond its own bookkeeping state.
type Deps struct {
	Store        *store.Store
	Control      *control.Surface
	Engine       *patternengine.Engine
	Discovery    *discovery.Pipeline
	Monitor      *procmon.Monitor
	Accounting   *accounting.Accounting
	Enforcer     *enforcer.Enforcer
	Router       *router.Router
	Browsers     BrowserResolverFactory
	Log          *logger.Logger
	PollInterval time.Duration
}

func New(d Deps) *Daemon {
	if d.Browsers == nil {
		d.Browsers = func(string) *browser.Resolver { return nil }
	}
	if d.Log == nil {
		d.Log = logger.New("daemon", "info")
	}
	return &Daemon{
		st:           d.Store,
		control:      d.Control,
		engine:       d.Engine,
		disco:        d.Discovery,
		monitor:      d.Monitor,
		account:      d.Accounting,
		enforce:      d.Enforcer,
		route:        d.Router,
		browsers:     d.Browsers,
		log:          d.Log,
		pollInterval: d.PollInterval,
		liveSessions: make(map[string]map[int]int64),
	}
}

// Tick runs one full poll cycle for every enabled user, the scheduler's
// TickFunc.
func (d *Daemon) Tick(ctx context.Context, now time.Time) error {
	reloaded, err := d.control.Tick(ctx)
	if err != nil {
		d.log.Warn("control surface reload failed, using last-known config", "error", err)
	}
	snap := d.control.Snapshot()
	d.enforce.SetPassthrough(snap.Mode == store.ModePassthrough)
	if reloaded {
		d.log.Debug("control surface reloaded", "mode", snap.Mode, "users", len(snap.EnabledUsers))
	}

	for _, user := range snap.EnabledUsers {
		if err := d.tickUser(ctx, user, snap, now); err != nil {
			d.log.Error("tick failed for user", "user", user, "error", err)
		}
	}

	d.disco.Sweep(snap.Discovery, now)
	return nil
}

func (d *Daemon) tickUser(ctx context.Context, user string, snap control.Snapshot, now time.Time) error {
	limit, err := d.st.GetUserLimit(ctx, user)
	if err != nil {
		return fmt.Errorf("load user limit: %w", err)
	}
	if limit == nil {
		return fmt.Errorf("enabled user %s has no limit row", user)
	}

	result, err := d.monitor.Tick(ctx, d.st, user, snap.Mode, snap.Discovery, snap.StrictGraceSeconds, d.pollInterval, now)
	if err != nil {
		return fmt.Errorf("process monitor tick: %w", err)
	}

	for _, s := range result.NewGamingSessions {
		if accounting.OutsideAllowedHours(limit.Schedule, now) {
			// Caught before a Session row ever exists: zero runtime
			// accumulation, zero Session rows, matching
			// original_source's blocked_schedule handling.
			if err := d.enforce.Terminate(ctx, s.User, s.PID, s.App, "OUTSIDE_HOURS"); err != nil {
				d.log.Error("terminate outside-hours process failed", "user", s.User, "pid", s.PID, "error", err)
			}
			d.notify(ctx, "outside_hours", router.Context{User: s.User, Process: s.App, Category: string(s.Category)}, false)
			continue
		}
		id, err := d.st.OpenSession(ctx, s.User, s.App, s.Category, s.PID, now)
		if err != nil {
			d.log.Error("open session failed", "user", s.User, "app", s.App, "error", err)
			continue
		}
		if d.liveSessions[s.User] == nil {
			d.liveSessions[s.User] = make(map[int]int64)
		}
		d.liveSessions[s.User][s.PID] = id
		d.notify(ctx, "process_start", router.Context{User: s.User, Process: s.App, Category: string(s.Category)}, false)
	}

	enforcedPIDs := make(map[int]bool)
	for _, t := range result.DisallowedTerminations {
		if err := d.enforce.Terminate(ctx, t.User, t.PID, t.ProcessName, t.Reason); err != nil {
			d.log.Error("terminate disallowed process failed", "user", t.User, "pid", t.PID, "error", err)
		}
		enforcedPIDs[t.PID] = true
		d.notify(ctx, "blocked_launch", router.Context{User: t.User, Process: t.ProcessName}, false)
	}
	for _, t := range result.StrictTerminations {
		if err := d.enforce.Terminate(ctx, t.User, t.PID, t.ProcessName, t.Reason); err != nil {
			d.log.Error("terminate strict-mode process failed", "user", t.User, "pid", t.PID, "error", err)
		}
		enforcedPIDs[t.PID] = true
		d.notify(ctx, "enforcement", router.Context{User: t.User, Process: t.ProcessName}, false)
	}
	for _, w := range result.StrictWarnings {
		d.notify(ctx, "strict_warning", router.Context{
			User: w.User, Process: w.ProcessName, GraceSeconds: w.GraceSeconds,
		}, false)
	}
	for _, p := range result.CatchAllDiscoveries {
		d.notify(ctx, "discovery", router.Context{User: user, Process: p.DisplayName, Category: string(p.Category)}, false)
	}

	for _, e := range result.EndedGamingSessions {
		id, ok := d.liveSessions[e.User][e.PID]
		if !ok {
			continue
		}
		reason := store.EndNatural
		if enforcedPIDs[e.PID] {
			reason = store.EndEnforced
		}
		if err := accounting.RecordSessionEnd(ctx, d.st, id, now, reason); err != nil {
			d.log.Error("close session failed", "user", e.User, "pid", e.PID, "error", err)
		}
		delete(d.liveSessions[e.User], e.PID)
		d.notify(ctx, "process_end", router.Context{User: e.User}, false)
	}

	gamingNow := len(d.monitorLiveGamingPIDs(user)) > 0
	if resolver := d.browsers(user); resolver != nil {
		browserGaming, err := d.tickBrowser(ctx, user, snap, resolver, now)
		if err != nil {
			d.log.Error("browser scan failed", "user", user, "error", err)
		}
		gamingNow = gamingNow || browserGaming
	}

	weekday := int(now.Weekday()+6) % 7
	dailyLimitMinutes := limit.DailyLimits[weekday]

	decision, err := d.account.Tick(ctx, user, gamingNow, dailyLimitMinutes, snap.StrictGraceSeconds, d.pollInterval, now)
	if err != nil {
		return fmt.Errorf("accounting tick: %w", err)
	}
	for _, intention := range decision.Intentions {
		d.notify(ctx, intention.Name, router.Context{
			User: user, TimeLeft: intention.TimeLeft / 60, TimeUsed: intention.TimeUsed / 60, TimeLimit: intention.TimeLimit / 60,
			GraceSeconds: decision.GraceSeconds,
		}, intention.Name == "grace_period")
	}
	if decision.TerminateAllGaming {
		// The grace period is a literal wait, not a deferred timer: the
		// user gets decision.GraceSeconds with the warning already on
		// screen before anything is killed, matching
		// original_source/main.py's router.grace_period(...); time.sleep(...).
		// This blocks the scan loop for every other user for the
		// duration, same as the single-threaded original.
		select {
		case <-time.After(time.Duration(decision.GraceSeconds) * time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
		d.terminateAllGaming(ctx, user)
	}

	return nil
}

func (d *Daemon) notify(ctx context.Context, intention string, c router.Context, replacePrevious bool) {
	if err := d.route.Send(ctx, intention, c, replacePrevious); err != nil {
		d.log.Error("notification send failed", "intention", intention, "user", c.User, "error", err)
	}
}

// monitorLiveGamingPIDs is a small accessor kept on Daemon rather than
// exported from procmon, since only the orchestrator needs to know "is
// anyone gaming right now" for the accounting gate.
func (d *Daemon) monitorLiveGamingPIDs(user string) map[int]int64 {
	return d.liveSessions[user]
}

func (d *Daemon) tickBrowser(ctx context.Context, user string, snap control.Snapshot, resolver *browser.Resolver, now time.Time) (bool, error) {
	domains, err := resolver.ActiveDomains(ctx)
	if err != nil {
		return false, fmt.Errorf("resolve active domains: %w", err)
	}

	gamingNow := false
	for domain, browserID := range domains {
		matched, err := d.engine.MatchBrowser(ctx, patternengine.BrowserObservation{User: user, Domain: domain, Browser: browserID})
		if err != nil {
			return gamingNow, fmt.Errorf("match browser domain %s: %w", domain, err)
		}
		if matched == nil {
			if err := d.disco.ObserveBrowser(ctx, snap.Discovery, user, domain, browserID, now); err != nil {
				return gamingNow, fmt.Errorf("observe browser domain for discovery: %w", err)
			}
			continue
		}
		if _, err := d.engine.RecordBrowserMatch(ctx, *matched, 0, d.pollInterval); err != nil {
			return gamingNow, fmt.Errorf("record browser match: %w", err)
		}
		if matched.MonitorState == store.StateActive && matched.Category == store.CategoryGaming {
			gamingNow = true
		}
	}
	return gamingNow, nil
}

// terminateAllGaming is fired once a user's daily budget is fully
// expired: every session still open for that user is closed and, unless
// in passthrough mode, the backing process is killed.
func (d *Daemon) terminateAllGaming(ctx context.Context, user string) {
	for pid, sessionID := range d.liveSessions[user] {
		if err := d.enforce.Terminate(ctx, user, pid, "", "TIME_EXPIRED"); err != nil {
			d.log.Error("terminate on expiry failed", "user", user, "pid", pid, "error", err)
		}
		if err := accounting.RecordSessionEnd(ctx, d.st, sessionID, time.Now(), store.EndEnforced); err != nil {
			d.log.Error("close expired session failed", "user", user, "pid", pid, "error", err)
		}
		delete(d.liveSessions[user], pid)
	}
}
