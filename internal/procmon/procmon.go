// Package procmon enumerates per-user processes, applies the safety
// exclusion rules, and drives the pattern engine and discovery pipeline
// once per scan tick. It owns the hysteresis and strict-pending state,
// both of which are process-wide, Monitor-owned, and never shared.
package procmon

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/aaronsb/playtimed/internal/discovery"
	"github.com/aaronsb/playtimed/internal/patternengine"
	"github.com/aaronsb/playtimed/internal/safety"
	"github.com/aaronsb/playtimed/internal/store"
)

// hysteresisTicks is the number of consecutive sub-threshold ticks after
// which a tracked gaming pid is dropped: the third such tick drops it
// (~90s at the default 30s poll interval).
const hysteresisTicks = 3

// Observation is one process seen during enumeration, after exclusion.
type Observation struct {
	PID        int
	PPID       int
	Name       string
	Cmdline    string
	CPUPercent float64
}

// Enumerator abstracts process enumeration so tests can fake it without
// touching the real process table.
type Enumerator interface {
	ProcessesForUser(user string) ([]Observation, error)
	Descendants(pid int) ([]int, error)
	// ProcessInfo looks up identity fields for a single pid, used by the
	// Enforcer to run the safety exclusion against a descendant it did
	// not enumerate itself.
	ProcessInfo(pid int) (name, cmdline string, ppid int, err error)
}

// gopsutilEnumerator is the production Enumerator, backed by gopsutil.
type gopsutilEnumerator struct{}

func NewGopsutilEnumerator() Enumerator { return gopsutilEnumerator{} }

func (gopsutilEnumerator) ProcessesForUser(user string) ([]Observation, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("enumerate processes: %w", err)
	}
	var out []Observation
	for _, p := range procs {
		owner, err := p.Username()
		if err != nil || owner != user {
			continue
		}
		name, err := p.Name()
		if err != nil {
			continue
		}
		ppid, _ := p.Ppid()
		cmdline, _ := p.Cmdline()
		cpu, err := p.CPUPercent()
		if err != nil {
			cpu = 0
		}
		out = append(out, Observation{
			PID: int(p.Pid), PPID: int(ppid), Name: name, Cmdline: cmdline, CPUPercent: cpu,
		})
	}
	return out, nil
}

func (gopsutilEnumerator) ProcessInfo(pid int) (string, string, int, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return "", "", 0, nil // gone; caller treats an unresolvable pid as not excluded
	}
	name, _ := p.Name()
	cmdline, _ := p.Cmdline()
	ppid, _ := p.Ppid()
	return name, cmdline, int(ppid), nil
}

func (gopsutilEnumerator) Descendants(pid int) ([]int, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil, nil // process already gone; treated as success by the enforcer
	}
	var out []int
	queue := []*process.Process{p}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		children, err := cur.Children()
		if err != nil {
			continue
		}
		for _, c := range children {
			out = append(out, int(c.Pid))
			queue = append(queue, c)
		}
	}
	return out, nil
}

// gamingPidState tracks the hysteresis counter and Session row for one
// tracked gaming pid.
type gamingPidState struct {
	sessionID          int64
	consecutiveBelow   int
}

// strictPendingEntry is one row of the Strict-pending map.
type strictPendingEntry struct {
	processName  string
	cmdline      string
	warnedAtMono time.Time
}

// Monitor enumerates processes for every monitored user each tick.
type Monitor struct {
	enum     Enumerator
	excluder *safety.Excluder
	engine   *patternengine.Engine
	disco    *discovery.Pipeline

	// gamingPids[user][pid] tracks hysteresis + session linkage for
	// currently-tracked gaming processes.
	gamingPids map[string]map[int]*gamingPidState
	// strictPending[pid] is Monitor-owned, process-wide, never shared.
	strictPending map[int]*strictPendingEntry
}

func New(enum Enumerator, excluder *safety.Excluder, engine *patternengine.Engine, disco *discovery.Pipeline) *Monitor {
	return &Monitor{
		enum:          enum,
		excluder:      excluder,
		engine:        engine,
		disco:         disco,
		gamingPids:    make(map[string]map[int]*gamingPidState),
		strictPending: make(map[int]*strictPendingEntry),
	}
}

// TickResult summarises the actions a tick decided on, for the Daemon to
// execute (terminations) and report (new sessions, ended sessions).
type TickResult struct {
	DisallowedTerminations []TerminationOrder
	StrictWarnings         []StrictWarning
	StrictTerminations     []TerminationOrder
	NewGamingSessions      []NewSession
	EndedGamingSessions    []EndedSession
	CatchAllDiscoveries    []store.Pattern
}

// StrictWarning is fired the first time an unmatched, over-threshold pid
// is seen in strict mode; the Router turns it into a strict_warning
// intention while the pid sits in the Strict-pending map.
type StrictWarning struct {
	PID         int
	ProcessName string
	User        string
	GraceSeconds int
}

type TerminationOrder struct {
	PID         int
	ProcessName string
	User        string
	Reason      string // "BLOCKED", "KILLED", or a strict-mode reason tag
}

type NewSession struct {
	User     string
	App      string
	Category store.Category
	PID      int
}

type EndedSession struct {
	User string
	PID  int
}

// Tick runs one scan for one user, implementing §4.4 steps 1-6 of the
// process-monitor design (matching, disallow/strict enforcement,
// catch-all auto-discovery, session start/end detection, hysteresis).
func (m *Monitor) Tick(ctx context.Context, st *store.Store, user string, mode store.DaemonMode, discoCfg store.DiscoveryConfig, strictGraceSeconds int, pollInterval time.Duration, now time.Time) (TickResult, error) {
	var result TickResult

	obs, err := m.enum.ProcessesForUser(user)
	if err != nil {
		return result, fmt.Errorf("enumerate processes for %s: %w", user, err)
	}

	if m.gamingPids[user] == nil {
		m.gamingPids[user] = make(map[int]*gamingPidState)
	}
	previousGaming := m.gamingPids[user]
	thisTickGaming := make(map[int]*gamingPidState)
	seenThisTick := make(map[int]bool)

	for _, o := range obs {
		if m.excluder.IsExcluded(o.Name, o.Cmdline, o.PID, o.PPID) {
			continue
		}
		seenThisTick[o.PID] = true

		matched, err := m.engine.MatchProcess(ctx, patternengine.ProcessObservation{
			User: user, PID: o.PID, Name: o.Name, Cmdline: o.Cmdline, CPUPercent: o.CPUPercent,
		})
		if err != nil {
			return result, fmt.Errorf("match process %s (pid %d): %w", o.Name, o.PID, err)
		}

		if matched != nil {
			if _, err := m.engine.RecordProcessMatch(ctx, *matched, o.PID, o.CPUPercent, pollInterval); err != nil {
				return result, err
			}

			if matched.MonitorState == store.StateDisallowed && mode != store.ModePassthrough {
				result.DisallowedTerminations = append(result.DisallowedTerminations, TerminationOrder{
					PID: o.PID, ProcessName: o.Name, User: user, Reason: "BLOCKED",
				})
			}

			if isCatchAll(*matched) && strings.HasSuffix(strings.ToLower(o.Name), ".exe") {
				if p, created, err := m.autoDiscoverFromCatchAll(ctx, st, *matched, user, o); err != nil {
					return result, err
				} else if created {
					result.CatchAllDiscoveries = append(result.CatchAllDiscoveries, p)
				}
			}

			if matched.MonitorState == store.StateActive && matched.Category == store.CategoryGaming {
				state, wasTracked := previousGaming[o.PID]
				if o.CPUPercent >= matched.CPUThreshold {
					if !wasTracked {
						result.NewGamingSessions = append(result.NewGamingSessions, NewSession{
							User: user, App: matched.DisplayName, Category: matched.Category, PID: o.PID,
						})
						state = &gamingPidState{}
					}
					state.consecutiveBelow = 0
					thisTickGaming[o.PID] = state
				} else if wasTracked {
					state.consecutiveBelow++
					if state.consecutiveBelow < hysteresisTicks {
						thisTickGaming[o.PID] = state
					}
					// else: dropped by hysteresis, falls through to session-end detection below
				}
			}
			continue
		}

		// Unmatched.
		if mode == store.ModeStrict && o.CPUPercent >= discoCfg.CPUThreshold {
			m.handleStrictUnmatched(user, o, strictGraceSeconds, now, &result)
		}
		if err := m.disco.ObserveProcess(ctx, discoCfg, user, o.Name, o.Cmdline, o.PID, o.CPUPercent, now); err != nil {
			return result, fmt.Errorf("observe process for discovery: %w", err)
		}
	}

	// Detect ended sessions: any pid tracked last tick that is not
	// continuing this tick (either gone or dropped by hysteresis).
	for pid := range previousGaming {
		if _, stillTracked := thisTickGaming[pid]; !stillTracked {
			result.EndedGamingSessions = append(result.EndedGamingSessions, EndedSession{User: user, PID: pid})
		}
	}
	m.gamingPids[user] = thisTickGaming

	// Purge strict-pending entries not observed this tick.
	for pid := range m.strictPending {
		if !seenThisTick[pid] {
			delete(m.strictPending, pid)
		}
	}

	return result, nil
}

func isCatchAll(p store.Pattern) bool {
	return p.Owner == "" && p.PatternType == store.PatternProcess && p.PatternText == `\.exe$`
}

// autoDiscoverFromCatchAll implements the "container-discovers-member"
// rule: a global `.exe$` catch-all seeds a specific per-user active
// pattern the first time a concrete process matches it, inheriting the
// catch-all's category and cpu_threshold.
func (m *Monitor) autoDiscoverFromCatchAll(ctx context.Context, st *store.Store, catchAll store.Pattern, user string, o Observation) (store.Pattern, bool, error) {
	displayName := o.Name[:len(o.Name)-len(".exe")]

	existing, err := st.FindByNameAndOwner(ctx, displayName, user)
	if err != nil {
		return store.Pattern{}, false, fmt.Errorf("check existing auto-discovered pattern: %w", err)
	}
	if existing != nil {
		return store.Pattern{}, false, nil
	}

	np := store.Pattern{
		PatternText:  escapeForLiteralProcessName(o.Name),
		DisplayName:  displayName,
		Category:     catchAll.Category,
		PatternType:  store.PatternProcess,
		MonitorState: store.StateActive,
		Owner:        user,
		Enabled:      true,
		CPUThreshold: catchAll.CPUThreshold,
	}
	id, err := st.AddPattern(ctx, np)
	if err != nil {
		return store.Pattern{}, false, fmt.Errorf("auto-discover pattern from catch-all: %w", err)
	}
	np.ID = id
	return np, true, nil
}

func escapeForLiteralProcessName(name string) string {
	r := strings.NewReplacer(".", `\.`, "+", `\+`, "(", `\(`, ")", `\)`)
	return r.Replace(name)
}

// handleStrictUnmatched implements §4.4 step 5a: fire a one-time warning
// when a pid is first seen unmatched and over threshold in strict mode,
// then terminate it once strict_grace_seconds have elapsed since the
// warning.
func (m *Monitor) handleStrictUnmatched(user string, o Observation, graceSeconds int, now time.Time, result *TickResult) {
	entry, pending := m.strictPending[o.PID]
	if !pending {
		m.strictPending[o.PID] = &strictPendingEntry{processName: o.Name, cmdline: o.Cmdline, warnedAtMono: now}
		result.StrictWarnings = append(result.StrictWarnings, StrictWarning{
			PID: o.PID, ProcessName: o.Name, User: user, GraceSeconds: graceSeconds,
		})
		return
	}
	if now.Sub(entry.warnedAtMono) >= time.Duration(graceSeconds)*time.Second {
		result.StrictTerminations = append(result.StrictTerminations, TerminationOrder{
			PID: o.PID, ProcessName: o.Name, User: user, Reason: "STRICT_ENFORCEMENT",
		})
		delete(m.strictPending, o.PID)
	}
}
