package control

import (
	"context"
	"path/filepath"
	"testing"

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

func TestLoadPopulatesSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.AddUser(ctx, store.UserLimit{
		Username: "anders", Enabled: true, DailyTotalMinutes: 120,
		Schedule: zeros(168), DailyLimits: [7]int{60, 60, 60, 60, 60, 120, 120},
	}))

	surf := New(s, 10, nil)
	require.NoError(t, surf.Load(ctx))

	snap := surf.Snapshot()
	require.Equal(t, store.ModeNormal, snap.Mode)
	require.Contains(t, snap.EnabledUsers, "anders")
}

func TestTickReloadsOnlyEveryNCalls(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	surf := New(s, 3, nil)
	require.NoError(t, surf.Load(ctx))

	reloaded, err := surf.Tick(ctx)
	require.NoError(t, err)
	require.False(t, reloaded)

	reloaded, err = surf.Tick(ctx)
	require.NoError(t, err)
	require.False(t, reloaded)

	reloaded, err = surf.Tick(ctx)
	require.NoError(t, err)
	require.True(t, reloaded, "third tick should trigger the periodic reload")
}

func TestRequestReloadForcesImmediateReload(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	surf := New(s, 100, nil)
	require.NoError(t, surf.Load(ctx))

	surf.RequestReload()
	reloaded, err := surf.Tick(ctx)
	require.NoError(t, err)
	require.True(t, reloaded)
}

func TestModeChangeCallbackFires(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	surf := New(s, 1, nil)
	require.NoError(t, surf.Load(ctx))

	var oldMode, newMode store.DaemonMode
	fired := false
	surf.OnModeChange(func(old, next store.DaemonMode) {
		fired = true
		oldMode, newMode = old, next
	})

	require.NoError(t, s.SetDaemonMode(ctx, "strict"))
	_, err := surf.Tick(ctx)
	require.NoError(t, err)

	require.True(t, fired)
	require.Equal(t, store.ModeNormal, oldMode)
	require.Equal(t, store.ModeStrict, newMode)
}

func TestUserEnableDisableDetectedAsAddedRemoved(t *testing.T) {
	added, removed := diffUsers([]string{"anders", "bea"}, []string{"bea", "cleo"})
	require.ElementsMatch(t, []string{"cleo"}, added)
	require.ElementsMatch(t, []string{"anders"}, removed)
}

func zeros(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = '0'
	}
	return string(b)
}
