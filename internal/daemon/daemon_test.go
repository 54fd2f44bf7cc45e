package daemon

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aaronsb/playtimed/internal/accounting"
	"github.com/aaronsb/playtimed/internal/control"
	"github.com/aaronsb/playtimed/internal/discovery"
	"github.com/aaronsb/playtimed/internal/enforcer"
	"github.com/aaronsb/playtimed/internal/notify"
	"github.com/aaronsb/playtimed/internal/patternengine"
	"github.com/aaronsb/playtimed/internal/procmon"
	"github.com/aaronsb/playtimed/internal/router"
	"github.com/aaronsb/playtimed/internal/safety"
	"github.com/aaronsb/playtimed/internal/store"
)

type fakeEnumerator struct{ procs []procmon.Observation }

func (f *fakeEnumerator) ProcessesForUser(user string) ([]procmon.Observation, error) {
	return f.procs, nil
}
func (f *fakeEnumerator) Descendants(pid int) ([]int, error) { return nil, nil }
func (f *fakeEnumerator) ProcessInfo(pid int) (string, string, int, error) {
	return "", "", 0, nil
}

type capturingBackend struct{ sent []notify.Message }

func (c *capturingBackend) Name() string { return "log_only" }
func (c *capturingBackend) Send(ctx context.Context, m notify.Message) (notify.Result, error) {
	c.sent = append(c.sent, m)
	return notify.Result{Backend: "log_only"}, nil
}

func newHarness(t *testing.T, procs []procmon.Observation) (*Daemon, *store.Store, *capturingBackend) {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(store.DefaultConfig(filepath.Join(dir, "test.db")))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	zeros := make([]byte, 168)
	for i := range zeros {
		zeros[i] = '1'
	}
	require.NoError(t, s.AddUser(context.Background(), store.UserLimit{
		Username: "anders", Enabled: true, DailyTotalMinutes: 120, Schedule: string(zeros),
		DailyLimits: [7]int{120, 120, 120, 120, 120, 120, 120},
	}))

	engine := patternengine.New(s, nil)
	disco := discovery.New(s, nil)
	excluder := safety.New(99999, "playtimed", "playtimed daemon")
	mon := procmon.New(&fakeEnumerator{procs: procs}, excluder, engine, disco)
	acct := accounting.New(s)
	enf := enforcer.New(s, fakeResolver{}, excluder, 50*time.Millisecond, nil)
	backend := &capturingBackend{}
	rt := router.New(s, notify.NewDispatcher(nil, backend))
	ctl := control.New(s, 1, nil)
	require.NoError(t, ctl.Load(context.Background()))

	d := New(Deps{
		Store: s, Control: ctl, Engine: engine, Discovery: disco, Monitor: mon,
		Accounting: acct, Enforcer: enf, Router: rt, PollInterval: 30 * time.Second,
	})
	return d, s, backend
}

type fakeResolver struct{}

func (fakeResolver) Descendants(pid int) ([]int, error) { return nil, nil }
func (fakeResolver) ProcessInfo(pid int) (string, string, int, error) {
	return "", "", 0, nil
}

func TestTickStartsGamingSessionAndNotifies(t *testing.T) {
	d, s, backend := newHarness(t, []procmon.Observation{
		{PID: 500, PPID: 1, Name: "Minecraft.exe", Cmdline: "Minecraft.exe", CPUPercent: 40},
	})
	ctx := context.Background()
	_, err := s.AddPattern(ctx, store.Pattern{
		PatternText: "Minecraft", DisplayName: "Minecraft", Category: store.CategoryGaming,
		PatternType: store.PatternProcess, MonitorState: store.StateActive, Enabled: true, CPUThreshold: 20,
	})
	require.NoError(t, err)

	require.NoError(t, d.Tick(ctx, time.Now()))

	sessions, err := s.ListSessions(ctx, "anders", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Nil(t, sessions[0].EndTime)

	var sawStart bool
	for _, m := range backend.sent {
		if m.Title != "" {
			sawStart = true
		}
	}
	require.True(t, sawStart, "expected at least one notification to be dispatched")
}

func TestTickBlocksGamingOutsideAllowedHours(t *testing.T) {
	d, s, _ := newHarness(t, []procmon.Observation{
		{PID: 502, PPID: 1, Name: "Minecraft.exe", Cmdline: "Minecraft.exe", CPUPercent: 40},
	})
	ctx := context.Background()
	_, err := s.AddPattern(ctx, store.Pattern{
		PatternText: "Minecraft", DisplayName: "Minecraft", Category: store.CategoryGaming,
		PatternType: store.PatternProcess, MonitorState: store.StateActive, Enabled: true, CPUThreshold: 20,
	})
	require.NoError(t, err)

	closedSchedule := make([]byte, 168)
	for i := range closedSchedule {
		closedSchedule[i] = '0'
	}
	limit, err := s.GetUserLimit(ctx, "anders")
	require.NoError(t, err)
	require.NoError(t, s.UpdateSchedule(ctx, "anders", string(closedSchedule), limit.DailyLimits))

	require.NoError(t, d.Tick(ctx, time.Now()))

	sessions, err := s.ListSessions(ctx, "anders", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, sessions, 0, "no Session row should be opened for a launch outside allowed hours")

	events, err := s.ListEvents(ctx, "anders", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "terminated", events[0].EventType)
	require.Equal(t, "OUTSIDE_HOURS", events[0].Details)
}

func TestTickSweepsStaleDiscoveryCandidates(t *testing.T) {
	d, _, _ := newHarness(t, []procmon.Observation{
		{PID: 503, PPID: 1, Name: "oneshot.exe", Cmdline: "oneshot.exe", CPUPercent: 30},
	})
	ctx := context.Background()
	start := time.Now()

	require.NoError(t, d.Tick(ctx, start))
	require.Equal(t, 1, d.disco.Len(), "the unmatched high-CPU process should be tracked as a candidate")

	d.monitor = procmon.New(&fakeEnumerator{procs: nil}, safety.New(99999, "playtimed", "playtimed daemon"), d.engine, d.disco)
	require.NoError(t, d.Tick(ctx, start.Add(200*time.Second)))
	require.Equal(t, 0, d.disco.Len(), "a candidate that never reached min_samples must be swept once stale")
}

func TestTickTerminatesDisallowedProcess(t *testing.T) {
	d, s, backend := newHarness(t, []procmon.Observation{
		{PID: 501, PPID: 1, Name: "forbidden.exe", Cmdline: "forbidden.exe", CPUPercent: 10},
	})
	ctx := context.Background()
	_, err := s.AddPattern(ctx, store.Pattern{
		PatternText: "forbidden", DisplayName: "forbidden", Category: store.CategoryNone,
		PatternType: store.PatternProcess, MonitorState: store.StateDisallowed, Enabled: true,
	})
	require.NoError(t, err)

	require.NoError(t, d.Tick(ctx, time.Now()))

	events, err := s.ListEvents(ctx, "anders", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "terminated", events[0].EventType)

	var sawBlocked bool
	for _, m := range backend.sent {
		_ = m
		sawBlocked = true
	}
	require.True(t, sawBlocked)
}
