// Package discovery accumulates unmatched, high-CPU process and browser
// observations in a sliding window and promotes recurrent candidates into
// new discovered catalogue entries.
package discovery

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/aaronsb/playtimed/internal/store"
)

type sample struct {
	at  time.Time
	cpu float64
}

type candidate struct {
	samples   []sample
	firstSeen time.Time
	cmdline   string
	pid       int
	browser   string // non-empty for browser_domain candidates
}

// key identifies a candidate: (user, process name) for process
// candidates, (user, domain) for browser candidates.
type key struct {
	user string
	name string
}

// Pipeline is the Monitor-owned, in-memory discovery candidates map. It
// is never shared with another component.
type Pipeline struct {
	st *store.Store

	mu         sync.Mutex
	candidates map[key]*candidate

	onDiscovered func(ctx context.Context, user, name string, p store.Pattern)
}

func New(st *store.Store, onDiscovered func(ctx context.Context, user, name string, p store.Pattern)) *Pipeline {
	if onDiscovered == nil {
		onDiscovered = func(context.Context, string, string, store.Pattern) {}
	}
	return &Pipeline{st: st, candidates: make(map[key]*candidate), onDiscovered: onDiscovered}
}

// ObserveProcess records one unmatched process sample and, once the
// sliding window has min_samples within sample_window_seconds, promotes
// it to a discovered Pattern row, unless a catalogue entry with this
// display name and owner already exists.
func (p *Pipeline) ObserveProcess(ctx context.Context, cfg store.DiscoveryConfig, user, name, cmdline string, pid int, cpuPercent float64, now time.Time) error {
	if cpuPercent < cfg.CPUThreshold {
		return nil
	}
	return p.observe(ctx, cfg, key{user: user, name: name}, cmdline, pid, "", cpuPercent, now)
}

// ObserveBrowser records one unmatched browser-domain sample. The
// browser variant is structurally identical but has no CPU gate: every
// observation counts as a sample.
func (p *Pipeline) ObserveBrowser(ctx context.Context, cfg store.DiscoveryConfig, user, domain, browser string, now time.Time) error {
	return p.observe(ctx, cfg, key{user: user, name: domain}, "", 0, browser, 0, now)
}

func (p *Pipeline) observe(ctx context.Context, cfg store.DiscoveryConfig, k key, cmdline string, pid int, browser string, cpuPercent float64, now time.Time) error {
	p.mu.Lock()
	c, ok := p.candidates[k]
	if !ok {
		c = &candidate{firstSeen: now, cmdline: cmdline, pid: pid, browser: browser}
		p.candidates[k] = c
	}
	c.samples = append(c.samples, sample{at: now, cpu: cpuPercent})
	c.cmdline = cmdline
	if pid != 0 {
		c.pid = pid
	}

	window := time.Duration(cfg.SampleWindowSeconds) * time.Second
	cutoff := now.Add(-window)
	kept := c.samples[:0]
	for _, s := range c.samples {
		if s.at.After(cutoff) {
			kept = append(kept, s)
		}
	}
	c.samples = kept

	ready := len(c.samples) >= cfg.MinSamples
	if ready {
		delete(p.candidates, k)
	}
	p.mu.Unlock()

	if !ready {
		return nil
	}
	return p.promote(ctx, k, c)
}

func (p *Pipeline) promote(ctx context.Context, k key, c *candidate) error {
	existing, err := p.st.FindByNameAndOwner(ctx, k.name, k.user)
	if err != nil {
		return fmt.Errorf("check existing pattern %s/%s: %w", k.user, k.name, err)
	}
	if existing != nil {
		return nil
	}

	patternType := store.PatternProcess
	patternText := regexp.QuoteMeta(k.name)
	cpuThreshold := 5.0
	if c.browser != "" {
		patternType = store.PatternBrowserDomain
		patternText = k.name
		cpuThreshold = 0
	}

	np := store.Pattern{
		PatternText:       patternText,
		DisplayName:       k.name,
		Category:          store.CategoryNone,
		PatternType:       patternType,
		Browser:           c.browser,
		MonitorState:      store.StateDiscovered,
		Owner:             k.user,
		Enabled:           true,
		CPUThreshold:      cpuThreshold,
		DiscoveredCmdline: c.cmdline,
	}
	id, err := p.st.AddPattern(ctx, np)
	if err != nil {
		return fmt.Errorf("add discovered pattern %s/%s: %w", k.user, k.name, err)
	}
	np.ID = id

	if c.pid != 0 {
		if _, err := p.st.RecordMatch(ctx, id, c.pid, cpuThreshold, 0); err != nil {
			return fmt.Errorf("record triggering pid for pattern %d: %w", id, err)
		}
	}

	p.onDiscovered(ctx, k.user, k.name, np)
	return nil
}

// Sweep purges candidates whose last sample is older than the
// configured window, called once per tick after all observations for
// the tick have been fed in.
func (p *Pipeline) Sweep(cfg store.DiscoveryConfig, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	window := time.Duration(cfg.SampleWindowSeconds) * time.Second
	cutoff := now.Add(-window)
	for k, c := range p.candidates {
		if len(c.samples) == 0 {
			delete(p.candidates, k)
			continue
		}
		last := c.samples[len(c.samples)-1].at
		if last.Before(cutoff) {
			delete(p.candidates, k)
		}
	}
}

// Len reports the number of in-flight candidates, for tests and status
// reporting.
func (p *Pipeline) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.candidates)
}
