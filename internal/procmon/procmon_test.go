package procmon

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aaronsb/playtimed/internal/discovery"
	"github.com/aaronsb/playtimed/internal/patternengine"
	"github.com/aaronsb/playtimed/internal/safety"
	"github.com/aaronsb/playtimed/internal/store"
)

type fakeEnumerator struct {
	procs []Observation
}

func (f *fakeEnumerator) ProcessesForUser(user string) ([]Observation, error) { return f.procs, nil }
func (f *fakeEnumerator) Descendants(pid int) ([]int, error)                  { return nil, nil }
func (f *fakeEnumerator) ProcessInfo(pid int) (string, string, int, error)    { return "", "", 0, nil }

func newHarness(t *testing.T, procs []Observation) (*store.Store, *Monitor) {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(store.DefaultConfig(filepath.Join(dir, "test.db")))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	engine := patternengine.New(s, nil)
	disco := discovery.New(s, nil)
	excluder := safety.New(99999, "playtimed", "playtimed daemon")
	mon := New(&fakeEnumerator{procs: procs}, excluder, engine, disco)
	return s, mon
}

func TestGamingSessionStartsAndEnds(t *testing.T) {
	s, mon := newHarness(t, []Observation{{PID: 100, PPID: 1, Name: "Minecraft.exe", Cmdline: "Minecraft.exe", CPUPercent: 40}})
	ctx := context.Background()

	_, err := s.AddPattern(ctx, store.Pattern{
		PatternText: "Minecraft", DisplayName: "Minecraft", Category: store.CategoryGaming,
		PatternType: store.PatternProcess, MonitorState: store.StateActive, Enabled: true, CPUThreshold: 20,
	})
	require.NoError(t, err)

	discoCfg := store.DiscoveryConfig{Enabled: true, CPUThreshold: 25, SampleWindowSeconds: 120, MinSamples: 3}
	now := time.Now()

	r1, err := mon.Tick(ctx, s, "anders", store.ModeNormal, discoCfg, 30, 30*time.Second, now)
	require.NoError(t, err)
	require.Len(t, r1.NewGamingSessions, 1)
	require.Equal(t, "Minecraft", r1.NewGamingSessions[0].App)

	mon2 := mon
	_ = mon2
	// Process disappears next tick.
	mon.enum = &fakeEnumerator{procs: nil}
	r2, err := mon.Tick(ctx, s, "anders", store.ModeNormal, discoCfg, 30, 30*time.Second, now.Add(30*time.Second))
	require.NoError(t, err)
	require.Len(t, r2.EndedGamingSessions, 1)
	require.Equal(t, 100, r2.EndedGamingSessions[0].PID)
}

func TestHysteresisDropsPidOnThirdSubThresholdTick(t *testing.T) {
	s, mon := newHarness(t, []Observation{{PID: 200, PPID: 1, Name: "Minecraft.exe", Cmdline: "Minecraft.exe", CPUPercent: 40}})
	ctx := context.Background()

	_, err := s.AddPattern(ctx, store.Pattern{
		PatternText: "Minecraft", DisplayName: "Minecraft", Category: store.CategoryGaming,
		PatternType: store.PatternProcess, MonitorState: store.StateActive, Enabled: true, CPUThreshold: 20,
	})
	require.NoError(t, err)

	discoCfg := store.DiscoveryConfig{Enabled: true, CPUThreshold: 25, SampleWindowSeconds: 120, MinSamples: 3}
	now := time.Now()

	_, err = mon.Tick(ctx, s, "anders", store.ModeNormal, discoCfg, 30, 30*time.Second, now)
	require.NoError(t, err)

	below := &fakeEnumerator{procs: []Observation{{PID: 200, PPID: 1, Name: "Minecraft.exe", Cmdline: "Minecraft.exe", CPUPercent: 5}}}
	mon.enum = below

	for i := 1; i <= 3; i++ {
		r, err := mon.Tick(ctx, s, "anders", store.ModeNormal, discoCfg, 30, 30*time.Second, now.Add(time.Duration(i)*30*time.Second))
		require.NoError(t, err)
		if i < 3 {
			require.Empty(t, r.EndedGamingSessions, "tick %d should not drop the pid yet", i)
		} else {
			require.Len(t, r.EndedGamingSessions, 1, "third consecutive sub-threshold tick should drop the pid")
		}
	}
}

func TestDisallowedPatternFiresTermination(t *testing.T) {
	s, mon := newHarness(t, []Observation{{PID: 300, PPID: 1, Name: "banned", Cmdline: "banned", CPUPercent: 10}})
	ctx := context.Background()

	_, err := s.AddPattern(ctx, store.Pattern{
		PatternText: "banned", DisplayName: "Banned", PatternType: store.PatternProcess,
		MonitorState: store.StateDisallowed, Enabled: true,
	})
	require.NoError(t, err)

	discoCfg := store.DiscoveryConfig{Enabled: true, CPUThreshold: 25, SampleWindowSeconds: 120, MinSamples: 3}
	r, err := mon.Tick(ctx, s, "anders", store.ModeNormal, discoCfg, 30, 30*time.Second, time.Now())
	require.NoError(t, err)
	require.Len(t, r.DisallowedTerminations, 1)
	require.Equal(t, "BLOCKED", r.DisallowedTerminations[0].Reason)
}

func TestPassthroughModeSkipsDisallowedTermination(t *testing.T) {
	s, mon := newHarness(t, []Observation{{PID: 301, PPID: 1, Name: "banned", Cmdline: "banned", CPUPercent: 10}})
	ctx := context.Background()

	_, err := s.AddPattern(ctx, store.Pattern{
		PatternText: "banned", DisplayName: "Banned", PatternType: store.PatternProcess,
		MonitorState: store.StateDisallowed, Enabled: true,
	})
	require.NoError(t, err)

	discoCfg := store.DiscoveryConfig{Enabled: true, CPUThreshold: 25, SampleWindowSeconds: 120, MinSamples: 3}
	r, err := mon.Tick(ctx, s, "anders", store.ModePassthrough, discoCfg, 30, 30*time.Second, time.Now())
	require.NoError(t, err)
	require.Empty(t, r.DisallowedTerminations)
}

func TestStrictModeWarnsThenTerminatesAfterGrace(t *testing.T) {
	s, mon := newHarness(t, []Observation{{PID: 400, PPID: 1, Name: "unknowngame", Cmdline: "unknowngame", CPUPercent: 40}})
	ctx := context.Background()

	discoCfg := store.DiscoveryConfig{Enabled: true, CPUThreshold: 25, SampleWindowSeconds: 120, MinSamples: 10}
	now := time.Now()

	r1, err := mon.Tick(ctx, s, "anders", store.ModeStrict, discoCfg, 30, 30*time.Second, now)
	require.NoError(t, err)
	require.Len(t, r1.StrictWarnings, 1)
	require.Empty(t, r1.StrictTerminations)

	r2, err := mon.Tick(ctx, s, "anders", store.ModeStrict, discoCfg, 30, 30*time.Second, now.Add(15*time.Second))
	require.NoError(t, err)
	require.Empty(t, r2.StrictTerminations, "grace period has not elapsed yet")

	r3, err := mon.Tick(ctx, s, "anders", store.ModeStrict, discoCfg, 30, 30*time.Second, now.Add(31*time.Second))
	require.NoError(t, err)
	require.Len(t, r3.StrictTerminations, 1)
}

func TestCatchAllAutoDiscoversSpecificGame(t *testing.T) {
	s, mon := newHarness(t, []Observation{{PID: 500, PPID: 1, Name: "FalloutNV.exe", Cmdline: "FalloutNV.exe", CPUPercent: 30}})
	ctx := context.Background()

	_, err := s.AddPattern(ctx, store.Pattern{
		PatternText: `\.exe$`, DisplayName: "Any exe", Category: store.CategoryGaming,
		PatternType: store.PatternProcess, MonitorState: store.StateActive, Enabled: true, CPUThreshold: 5,
	})
	require.NoError(t, err)

	discoCfg := store.DiscoveryConfig{Enabled: true, CPUThreshold: 25, SampleWindowSeconds: 120, MinSamples: 3}
	r, err := mon.Tick(ctx, s, "anders", store.ModeNormal, discoCfg, 30, 30*time.Second, time.Now())
	require.NoError(t, err)
	require.Len(t, r.CatchAllDiscoveries, 1)
	require.Equal(t, "FalloutNV", r.CatchAllDiscoveries[0].DisplayName)
	require.Equal(t, store.StateActive, r.CatchAllDiscoveries[0].MonitorState)
	require.Equal(t, "anders", r.CatchAllDiscoveries[0].Owner)
}
