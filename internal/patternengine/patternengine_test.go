package patternengine

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

func TestMatchProcessPrecedenceUserBeforeGlobal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := New(s, nil)

	_, err := s.AddPattern(ctx, store.Pattern{
		PatternText: `\.exe$`, DisplayName: "Any exe", Category: store.CategoryGaming,
		PatternType: store.PatternProcess, MonitorState: store.StateActive, Enabled: true,
	})
	require.NoError(t, err)
	_, err = s.AddPattern(ctx, store.Pattern{
		PatternText: `FalloutNV\.exe`, DisplayName: "FalloutNV", Category: store.CategoryGaming,
		PatternType: store.PatternProcess, MonitorState: store.StateActive, Enabled: true, Owner: "anders",
	})
	require.NoError(t, err)

	m, err := e.MatchProcess(ctx, ProcessObservation{User: "anders", Name: "FalloutNV.exe", Cmdline: "FalloutNV.exe"})
	require.NoError(t, err)
	require.NotNil(t, m)
	require.Equal(t, "FalloutNV", m.DisplayName)
}

func TestMatchProcessInvalidRegexSkipped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := New(s, nil)

	_, err := s.AddPattern(ctx, store.Pattern{
		PatternText: "(unterminated", DisplayName: "Broken", PatternType: store.PatternProcess,
		MonitorState: store.StateActive, Enabled: true,
	})
	require.NoError(t, err)

	m, err := e.MatchProcess(ctx, ProcessObservation{User: "anders", Name: "whatever"})
	require.NoError(t, err)
	require.Nil(t, m)
}

func TestMatchBrowserExactDomain(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := New(s, nil)

	_, err := s.AddPattern(ctx, store.Pattern{
		PatternText: "discord.com", DisplayName: "Discord", Category: store.CategoryProductive,
		PatternType: store.PatternBrowserDomain, Browser: "chrome", MonitorState: store.StateActive, Enabled: true,
	})
	require.NoError(t, err)

	m, err := e.MatchBrowser(ctx, BrowserObservation{User: "anders", Domain: "discord.com", Browser: "chrome"})
	require.NoError(t, err)
	require.NotNil(t, m)

	m, err = e.MatchBrowser(ctx, BrowserObservation{User: "anders", Domain: "other.com"})
	require.NoError(t, err)
	require.Nil(t, m)
}

func TestRecordProcessMatchGatesOnThreshold(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := New(s, nil)

	id, err := s.AddPattern(ctx, store.Pattern{
		PatternText: "minecraft", DisplayName: "Minecraft", Category: store.CategoryGaming,
		PatternType: store.PatternProcess, MonitorState: store.StateActive, Enabled: true, CPUThreshold: 25,
	})
	require.NoError(t, err)
	p, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Equal(t, id, p[0].ID)

	_, err = e.RecordProcessMatch(ctx, p[0], 1234, 10, 30*time.Second) // below threshold
	require.NoError(t, err)
	_, err = e.RecordProcessMatch(ctx, p[0], 1234, 30, 30*time.Second) // above threshold
	require.NoError(t, err)

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(30), all[0].TotalRuntimeSeconds)
	require.Equal(t, int64(1), all[0].UniquePIDCount)
}
