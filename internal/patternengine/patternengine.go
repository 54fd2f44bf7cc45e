// Package patternengine matches process and browser observations against
// the pattern catalogue and records the statistics side effects of a match.
package patternengine

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aaronsb/playtimed/internal/store"
)

// ProcessObservation is a candidate process seen during a scan tick.
type ProcessObservation struct {
	User       string
	PID        int
	Name       string
	Cmdline    string
	CPUPercent float64
}

// BrowserObservation is a resolved browser tab seen during a scan tick.
type BrowserObservation struct {
	User    string
	Domain  string
	Browser string
}

// Match is the result of successfully matching an observation.
type Match struct {
	Pattern store.Pattern
	IsNewPID bool
}

// Engine matches observations against an enabled pattern set pulled from
// the Store. Compiled regexes are cached across ticks since pattern rows
// change infrequently relative to scan frequency.
type Engine struct {
	st  *store.Store
	log func(format string, args ...any)

	mu    sync.Mutex
	cache map[int64]*regexp.Regexp
}

func New(st *store.Store, logf func(format string, args ...any)) *Engine {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Engine{st: st, log: logf, cache: make(map[int64]*regexp.Regexp)}
}

// MatchProcess pulls patterns/name from the Store for the observation's
// owner and picks the best match, applying precedence rule 3: user-owned
// before global, more specific pattern_text before catch-alls, ties by id.
func (e *Engine) MatchProcess(ctx context.Context, obs ProcessObservation) (*store.Pattern, error) {
	patterns, err := e.st.ListEnabledFor(ctx, obs.User)
	if err != nil {
		return nil, fmt.Errorf("list patterns for %s: %w", obs.User, err)
	}

	var candidates []store.Pattern
	for _, p := range patterns {
		if p.PatternType != store.PatternProcess {
			continue
		}
		re := e.compile(p)
		if re == nil {
			continue
		}
		if re.MatchString(obs.Name) || re.MatchString(obs.Cmdline) {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sortByPrecedence(candidates)
	return &candidates[0], nil
}

// MatchBrowser matches a resolved browser domain against enabled
// browser_domain patterns for the observation's owner.
func (e *Engine) MatchBrowser(ctx context.Context, obs BrowserObservation) (*store.Pattern, error) {
	patterns, err := e.st.ListEnabledFor(ctx, obs.User)
	if err != nil {
		return nil, fmt.Errorf("list patterns for %s: %w", obs.User, err)
	}

	var candidates []store.Pattern
	for _, p := range patterns {
		if p.PatternType != store.PatternBrowserDomain {
			continue
		}
		if strings.EqualFold(p.PatternText, obs.Domain) {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sortByPrecedence(candidates)
	return &candidates[0], nil
}

// sortByPrecedence orders candidates: user-owned before global, longer
// pattern_text (more specific) before shorter (catch-alls), ties by id.
func sortByPrecedence(patterns []store.Pattern) {
	sort.SliceStable(patterns, func(i, j int) bool {
		a, b := patterns[i], patterns[j]
		aGlobal, bGlobal := a.Owner == "", b.Owner == ""
		if aGlobal != bGlobal {
			return !aGlobal // user-owned (false) sorts before global (true)
		}
		if len(a.PatternText) != len(b.PatternText) {
			return len(a.PatternText) > len(b.PatternText)
		}
		return a.ID < b.ID
	})
}

// compile returns the cached compiled regex for a process pattern,
// compiling and caching it on first use. An invalid regex is logged once
// and skipped for the rest of the pattern's lifetime in this process,
// matching the "invalid pattern is logged and skipped, never aborts the
// scan" error-handling rule; the next daemon restart retries compilation.
func (e *Engine) compile(p store.Pattern) *regexp.Regexp {
	e.mu.Lock()
	defer e.mu.Unlock()
	if re, ok := e.cache[p.ID]; ok {
		return re // may be nil, meaning "known invalid"
	}
	re, err := regexp.Compile("(?i)" + p.PatternText)
	if err != nil {
		e.log("pattern %d (%s): invalid regex %q: %v", p.ID, p.DisplayName, p.PatternText, err)
		e.cache[p.ID] = nil
		return nil
	}
	e.cache[p.ID] = re
	return re
}

// InvalidatePattern drops a cached regex (or "known invalid" marker) so
// the next match recompiles the pattern. Nothing in the daemon calls it,
// so a cached entry otherwise lasts until the process restarts.
func (e *Engine) InvalidatePattern(id int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.cache, id)
}

// RecordProcessMatch applies the statistics side effects of a process
// match: a seen-pid row, last_seen bump, and runtime accrual gated on the
// pattern's cpu_threshold.
func (e *Engine) RecordProcessMatch(ctx context.Context, p store.Pattern, pid int, cpuPercent float64, pollInterval time.Duration) (Match, error) {
	isNew, err := e.st.RecordMatch(ctx, p.ID, pid, cpuPercent, pollInterval)
	if err != nil {
		return Match{}, fmt.Errorf("record match for pattern %d: %w", p.ID, err)
	}
	return Match{Pattern: p, IsNewPID: isNew}, nil
}

// RecordBrowserMatch applies the statistics side effects of a browser
// match. Browser patterns always have cpu_threshold = 0, so the runtime
// always accrues.
func (e *Engine) RecordBrowserMatch(ctx context.Context, p store.Pattern, pid int, pollInterval time.Duration) (Match, error) {
	isNew, err := e.st.RecordMatch(ctx, p.ID, pid, 0, pollInterval)
	if err != nil {
		return Match{}, fmt.Errorf("record browser match for pattern %d: %w", p.ID, err)
	}
	return Match{Pattern: p, IsNewPID: isNew}, nil
}
