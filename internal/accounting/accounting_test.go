package accounting

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

func TestWarningCascade(t *testing.T) {
	s := newTestStore(t)
	a := New(s)
	ctx := context.Background()
	poll := 30 * time.Second
	now := time.Now()

	// First tick: gaming starts, no elapsed time accrues yet (LastPollAt was zero).
	_, err := a.Tick(ctx, "anders", true, 120, 30, poll, now)
	require.NoError(t, err)

	// Advance in 30s ticks to 90 minutes (180 ticks).
	for i := 1; i <= 180; i++ {
		_, err := a.Tick(ctx, "anders", true, 120, 30, poll, now.Add(time.Duration(i)*poll))
		require.NoError(t, err)
	}
	d, err := s.GetOrCreateDailySummary(ctx, store.Today(now), "anders")
	require.NoError(t, err)
	require.Equal(t, int64(5400), d.GamingTimeSeconds)
	require.True(t, d.Warned30)
	require.False(t, d.Warned15)
}

func TestExpiryFiresGraceAndEnforcement(t *testing.T) {
	s := newTestStore(t)
	a := New(s)
	ctx := context.Background()
	poll := 30 * time.Second
	now := time.Now()

	_, err := a.Tick(ctx, "anders", true, 1, 30, poll, now) // 1 minute limit
	require.NoError(t, err)
	dec, err := a.Tick(ctx, "anders", true, 1, 30, poll, now.Add(2*time.Minute))
	require.NoError(t, err)
	require.Equal(t, StateExpired, dec.State)
	require.True(t, dec.TerminateAllGaming)
	require.Equal(t, 30, dec.GraceSeconds)

	var names []string
	for _, i := range dec.Intentions {
		names = append(names, i.Name)
	}
	require.Contains(t, names, "time_expired")
	require.Contains(t, names, "grace_period")
}

func TestSuspendResumeCapsElapsed(t *testing.T) {
	s := newTestStore(t)
	a := New(s)
	ctx := context.Background()
	poll := 30 * time.Second
	now := time.Now()

	_, err := a.Tick(ctx, "anders", true, 120, 30, poll, now)
	require.NoError(t, err)
	// Laptop suspends for 3.5 hours; resumes with process still running.
	_, err = a.Tick(ctx, "anders", true, 120, 30, poll, now.Add(3*time.Hour+30*time.Minute))
	require.NoError(t, err)

	d, err := s.GetOrCreateDailySummary(ctx, store.Today(now), "anders")
	require.NoError(t, err)
	require.Equal(t, int64(60), d.GamingTimeSeconds) // capped at 2*poll_interval = 60s
}

func TestOutsideAllowedHours(t *testing.T) {
	allZeros := make([]byte, 168)
	for i := range allZeros {
		allZeros[i] = '0'
	}
	require.True(t, OutsideAllowedHours(string(allZeros), time.Now()))

	allOnes := make([]byte, 168)
	for i := range allOnes {
		allOnes[i] = '1'
	}
	require.False(t, OutsideAllowedHours(string(allOnes), time.Now()))
}

func TestGamingTimeNeverExceedsTotalTime(t *testing.T) {
	s := newTestStore(t)
	a := New(s)
	ctx := context.Background()
	poll := 30 * time.Second
	now := time.Now()

	_, err := a.Tick(ctx, "anders", true, 120, 30, poll, now)
	require.NoError(t, err)
	_, err = a.Tick(ctx, "anders", true, 120, 30, poll, now.Add(poll))
	require.NoError(t, err)

	d, err := s.GetOrCreateDailySummary(ctx, store.Today(now), "anders")
	require.NoError(t, err)
	require.True(t, d.GamingTimeSeconds <= d.TotalTimeSeconds)
}
