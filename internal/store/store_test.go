package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(DefaultConfig(filepath.Join(dir, "test.db")))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrateIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	s, err := Open(DefaultConfig(path))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, Migrate(context.Background(), s.DB()))

	templates, err := s.ListTemplates(context.Background())
	require.NoError(t, err)
	require.Len(t, templates, len(defaultTemplates))
}

func TestUserLimitRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	allOnes := make([]byte, 168)
	for i := range allOnes {
		allOnes[i] = '1'
	}
	u := UserLimit{
		Username:          "anders",
		Enabled:           true,
		DailyTotalMinutes: 120,
		Schedule:          string(allOnes),
		DailyLimits:       [7]int{120, 120, 120, 120, 120, 120, 120},
	}
	require.NoError(t, s.AddUser(ctx, u))

	got, err := s.GetUserLimit(ctx, "anders")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, u.DailyLimits, got.DailyLimits)
	require.True(t, ValidSchedule(got.Schedule))

	require.NoError(t, s.SetUserEnabled(ctx, "anders", false))
	got, err = s.GetUserLimit(ctx, "anders")
	require.NoError(t, err)
	require.False(t, got.Enabled)
}

func TestInvalidScheduleRejected(t *testing.T) {
	s := newTestStore(t)
	err := s.AddUser(context.Background(), UserLimit{Username: "bad", Schedule: "short"})
	require.Error(t, err)
}

func TestPatternLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.AddPattern(ctx, Pattern{
		PatternText:  `(?i)minecraft`,
		DisplayName:  "Minecraft",
		Category:     CategoryGaming,
		PatternType:  PatternProcess,
		MonitorState: StateActive,
		Enabled:      true,
		CPUThreshold: 5,
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	require.NoError(t, s.SetMonitorState(ctx, id, StateDisallowed, ""))
	require.NoError(t, s.SetMonitorState(ctx, id, StateDisallowed, "")) // idempotent

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, StateDisallowed, all[0].MonitorState)
}

func TestDiscoveredPatternHasNoCategory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.AddPattern(ctx, Pattern{
		PatternText:  "Factorio",
		DisplayName:  "Factorio",
		PatternType:  PatternProcess,
		MonitorState: StateDiscovered,
		Enabled:      true,
	})
	require.NoError(t, err)

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Equal(t, id, all[0].ID)
	require.Equal(t, CategoryNone, all[0].Category)
}

func TestBrowserPatternInvariants(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddPattern(ctx, Pattern{
		PatternText:  "discord.com",
		DisplayName:  "Discord",
		PatternType:  PatternBrowserDomain,
		Browser:      "chrome",
		MonitorState: StateActive,
		Category:     CategoryProductive,
		Enabled:      true,
		CPUThreshold: 99, // should be forced to 0 by AddPattern
	})
	require.NoError(t, err)

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Equal(t, float64(0), all[0].CPUThreshold)
	require.Equal(t, "chrome", all[0].Browser)
}

func TestDailySummaryRoundTripKeepsInvariant(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d, err := s.GetOrCreateDailySummary(ctx, Today(time.Now()), "anders")
	require.NoError(t, err)
	require.Equal(t, int64(0), d.GamingTimeSeconds)

	d.GamingTimeSeconds = 60
	d.TotalTimeSeconds = 60
	d.GamingActive = true
	d.LastPollAt = time.Now()
	require.NoError(t, s.UpdateDailySummary(ctx, *d))

	got, err := s.GetOrCreateDailySummary(ctx, d.Date, "anders")
	require.NoError(t, err)
	require.True(t, got.GamingTimeSeconds <= got.TotalTimeSeconds)
	require.True(t, got.GamingActive)
}

func TestMaintenanceIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.RecordEvent(ctx, Event{Timestamp: time.Now().Add(-40 * 24 * time.Hour), User: "anders", EventType: "terminated"})
	require.NoError(t, err)

	r1, err := s.Maintenance(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), r1.EventsDeleted)

	r2, err := s.Maintenance(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), r2.EventsDeleted)
}

func TestSessionOpenClose(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	start := time.Now().Add(-time.Minute)

	id, err := s.OpenSession(ctx, "anders", "Minecraft", CategoryGaming, 1234, start)
	require.NoError(t, err)

	live, err := s.LiveSessionByPID(ctx, "anders", 1234)
	require.NoError(t, err)
	require.NotNil(t, live)
	require.Nil(t, live.EndTime)

	require.NoError(t, s.CloseSession(ctx, id, time.Now(), EndEnforced))

	live, err = s.LiveSessionByPID(ctx, "anders", 1234)
	require.NoError(t, err)
	require.Nil(t, live)
}
