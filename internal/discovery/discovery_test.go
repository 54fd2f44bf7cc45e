package discovery

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aaronsb/playtimed/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(store.DefaultConfig(filepath.Join(dir, "test.db")))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestProcessDiscoveryPromotesAfterMinSamples(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var discovered []string
	p := New(s, func(_ context.Context, user, name string, pat store.Pattern) {
		discovered = append(discovered, user+"/"+name)
	})

	cfg := store.DiscoveryConfig{Enabled: true, CPUThreshold: 25, SampleWindowSeconds: 120, MinSamples: 3}
	base := time.Now()

	for i := 0; i < 2; i++ {
		require.NoError(t, p.ObserveProcess(ctx, cfg, "anders", "Factorio", "Factorio", 5001, 60, base.Add(time.Duration(i)*30*time.Second)))
	}
	require.Equal(t, 0, len(discovered))

	require.NoError(t, p.ObserveProcess(ctx, cfg, "anders", "Factorio", "Factorio", 5001, 60, base.Add(60*time.Second)))
	require.Equal(t, []string{"anders/Factorio"}, discovered)

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, store.StateDiscovered, all[0].MonitorState)
	require.Equal(t, store.CategoryNone, all[0].Category)
}

func TestNoDuplicateDiscoveryForSameNameOwner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := New(s, nil)

	_, err := s.AddPattern(ctx, store.Pattern{
		PatternText: "Factorio", DisplayName: "Factorio", PatternType: store.PatternProcess,
		MonitorState: store.StateIgnored, Enabled: true, Owner: "anders",
	})
	require.NoError(t, err)

	cfg := store.DiscoveryConfig{Enabled: true, CPUThreshold: 25, SampleWindowSeconds: 120, MinSamples: 2}
	base := time.Now()
	require.NoError(t, p.ObserveProcess(ctx, cfg, "anders", "Factorio", "Factorio", 1, 60, base))
	require.NoError(t, p.ObserveProcess(ctx, cfg, "anders", "Factorio", "Factorio", 1, 60, base.Add(10*time.Second)))

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1) // no second row created
}

func TestSweepDropsStaleCandidates(t *testing.T) {
	s := newTestStore(t)
	p := New(s, nil)
	cfg := store.DiscoveryConfig{Enabled: true, CPUThreshold: 25, SampleWindowSeconds: 120, MinSamples: 5}
	base := time.Now()

	require.NoError(t, p.ObserveProcess(context.Background(), cfg, "anders", "Solitaire", "Solitaire", 1, 60, base))
	require.Equal(t, 1, p.Len())

	p.Sweep(cfg, base.Add(10*time.Minute))
	require.Equal(t, 0, p.Len())
}

func TestBrowserDiscoveryHasNoCPUGate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := New(s, nil)

	cfg := store.DiscoveryConfig{Enabled: true, CPUThreshold: 25, SampleWindowSeconds: 120, MinSamples: 2}
	base := time.Now()
	require.NoError(t, p.ObserveBrowser(ctx, cfg, "anders", "roblox.com", "chrome", base))
	require.NoError(t, p.ObserveBrowser(ctx, cfg, "anders", "roblox.com", "chrome", base.Add(5*time.Second)))

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, store.PatternBrowserDomain, all[0].PatternType)
	require.Equal(t, float64(0), all[0].CPUThreshold)
}
