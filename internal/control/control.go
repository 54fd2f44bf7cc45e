// Package control is the daemon's control surface: it holds the
// currently-active mode, user roster, and discovery parameters, and
// refreshes them from the Store either periodically or on demand
// (SIGHUP), so a CLI edit takes effect without a daemon restart.
package control

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/aaronsb/playtimed/internal/store"
)

// Snapshot is the control surface's point-in-time view, read by the
// Monitor/Accounting/Enforcer on every tick.
type Snapshot struct {
	Mode               store.DaemonMode
	StrictGraceSeconds int
	EnabledUsers       []string
	Discovery          store.DiscoveryConfig
}

// Surface owns the live Snapshot and decides when to refresh it.
type Surface struct {
	st          *store.Store
	reloadEvery int // reload every N calls to Tick, per the scheduler's poll cadence
	log         func(format string, args ...any)

	mu      sync.RWMutex
	current Snapshot

	tick    int
	forced  atomic.Bool // set by RequestReload, consumed by Tick
	onMode  func(old, next store.DaemonMode)
}

func New(st *store.Store, reloadEvery int, logf func(string, ...any)) *Surface {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	if reloadEvery <= 0 {
		reloadEvery = 10
	}
	return &Surface{st: st, reloadEvery: reloadEvery, log: logf}
}

// OnModeChange registers a callback fired whenever Reload observes the
// daemon mode changed since the last snapshot (used to route a
// mode_change notification).
func (s *Surface) OnModeChange(fn func(old, next store.DaemonMode)) {
	s.onMode = fn
}

// Load performs the initial synchronous read; call once at startup
// before the scheduler begins ticking.
func (s *Surface) Load(ctx context.Context) error {
	return s.reload(ctx)
}

// Snapshot returns the current control state. Safe for concurrent use.
func (s *Surface) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// RequestReload marks the next Tick call to reload regardless of the
// tick counter, the equivalent of a SIGHUP-triggered reload.
func (s *Surface) RequestReload() {
	s.forced.Store(true)
}

// Tick advances the periodic reload counter; every reloadEvery calls (or
// immediately after RequestReload) it re-reads the Store. Returns
// whether a reload happened.
func (s *Surface) Tick(ctx context.Context) (bool, error) {
	s.tick++
	if !s.forced.Load() && s.tick < s.reloadEvery {
		return false, nil
	}
	s.tick = 0
	s.forced.Store(false)
	return true, s.reload(ctx)
}

func (s *Surface) reload(ctx context.Context) error {
	cfg, err := s.st.GetDaemonConfig(ctx)
	if err != nil {
		return fmt.Errorf("reload daemon config: %w", err)
	}
	disco, err := s.st.GetDiscoveryConfig(ctx)
	if err != nil {
		return fmt.Errorf("reload discovery config: %w", err)
	}
	users, err := s.st.ListEnabledUsernames(ctx)
	if err != nil {
		return fmt.Errorf("reload enabled users: %w", err)
	}

	next := Snapshot{
		Mode:               cfg.Mode,
		StrictGraceSeconds: cfg.StrictGraceSeconds,
		EnabledUsers:       users,
		Discovery:          disco,
	}

	s.mu.Lock()
	prev := s.current
	s.current = next
	s.mu.Unlock()

	s.diff(prev, next)
	return nil
}

func (s *Surface) diff(prev, next Snapshot) {
	if prev.Mode != "" && prev.Mode != next.Mode {
		s.log("daemon mode changed: %s -> %s", prev.Mode, next.Mode)
		if s.onMode != nil {
			s.onMode(prev.Mode, next.Mode)
		}
	}

	added, removed := diffUsers(prev.EnabledUsers, next.EnabledUsers)
	for _, u := range added {
		s.log("user enrolled/enabled: %s", u)
	}
	for _, u := range removed {
		s.log("user removed/disabled: %s", u)
	}
}

func diffUsers(prev, next []string) (added, removed []string) {
	prevSet := make(map[string]bool, len(prev))
	for _, u := range prev {
		prevSet[u] = true
	}
	nextSet := make(map[string]bool, len(next))
	for _, u := range next {
		nextSet[u] = true
	}
	for _, u := range next {
		if !prevSet[u] {
			added = append(added, u)
		}
	}
	for _, u := range prev {
		if !nextSet[u] {
			removed = append(removed, u)
		}
	}
	return
}
