package enforcer

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aaronsb/playtimed/internal/safety"
	"github.com/aaronsb/playtimed/internal/store"
)

type fakeResolver struct{ descendants []int }

func (f fakeResolver) Descendants(pid int) ([]int, error) { return f.descendants, nil }
func (f fakeResolver) ProcessInfo(pid int) (string, string, int, error) {
	return "", "", 0, nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(store.DefaultConfig(filepath.Join(dir, "test.db")))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTerminateRecordsEventForRealProcess(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cmd := exec.Command("sleep", "30")
	require.NoError(t, cmd.Start())
	defer cmd.Process.Kill()

	e := New(s, fakeResolver{}, safety.New(os.Getpid(), "playtimed", "playtimed daemon"), 500*time.Millisecond, nil)
	require.NoError(t, e.Terminate(ctx, "anders", cmd.Process.Pid, "sleep", "BLOCKED"))

	events, err := s.ListEvents(ctx, "anders", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "terminated", events[0].EventType)
	require.Equal(t, "BLOCKED", events[0].Details)
}

func TestPassthroughModeDoesNotSignal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cmd := exec.Command("sleep", "30")
	require.NoError(t, cmd.Start())
	defer cmd.Process.Kill()

	e := New(s, fakeResolver{}, safety.New(os.Getpid(), "playtimed", "playtimed daemon"), 500*time.Millisecond, nil)
	e.SetPassthrough(true)
	require.NoError(t, e.Terminate(ctx, "anders", cmd.Process.Pid, "sleep", "BLOCKED"))

	require.NoError(t, cmd.Process.Signal(syscall.Signal(0)), "passthrough must not have signalled the process")
}

type namedResolver struct {
	descendants []int
	names       map[int]string
}

func (f namedResolver) Descendants(pid int) ([]int, error) { return f.descendants, nil }
func (f namedResolver) ProcessInfo(pid int) (string, string, int, error) {
	return f.names[pid], "", 1, nil
}

func TestSignalAllSkipsExcludedDescendant(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	root := exec.Command("sleep", "30")
	require.NoError(t, root.Start())
	defer root.Process.Kill()

	shell := exec.Command("sleep", "30")
	require.NoError(t, shell.Start())
	defer shell.Process.Kill()

	resolver := namedResolver{
		descendants: []int{shell.Process.Pid},
		names:       map[int]string{shell.Process.Pid: "bash"},
	}
	e := New(s, resolver, safety.New(os.Getpid(), "playtimed", "playtimed daemon"), 200*time.Millisecond, nil)
	require.NoError(t, e.Terminate(ctx, "anders", root.Process.Pid, "game", "BLOCKED"))

	require.NoError(t, shell.Process.Signal(syscall.Signal(0)), "excluded descendant must not have been signalled")
}

func TestVanishedProcessTreatedAsSuccess(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := New(s, fakeResolver{}, safety.New(os.Getpid(), "playtimed", "playtimed daemon"), 100*time.Millisecond, nil)
	require.NoError(t, e.Terminate(ctx, "anders", 999999, "ghost", "KILLED"))

	events, err := s.ListEvents(ctx, "anders", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, events, 1)
}
