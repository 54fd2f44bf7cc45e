package router

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aaronsb/playtimed/internal/notify"
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

type captureBackend struct{ last notify.Message }

func (c *captureBackend) Name() string { return "log_only" }
func (c *captureBackend) Send(ctx context.Context, m notify.Message) (notify.Result, error) {
	c.last = m
	return notify.Result{NotificationID: 42, Backend: "log_only"}, nil
}

func TestSendRendersSeededTemplate(t *testing.T) {
	s := newTestStore(t)
	backend := &captureBackend{}
	r := New(s, notify.NewDispatcher(nil, backend))

	err := r.Send(context.Background(), "process_start", Context{
		User: "anders", Process: "Minecraft.exe", Category: "sandbox",
	}, false)
	require.NoError(t, err)
	require.Contains(t, backend.last.Title, "Minecraft.exe")
	require.Contains(t, backend.last.Body, "anders")
	require.Contains(t, backend.last.Body, "sandbox")

	logged, err := s.ListMessages(context.Background(), "anders", 10)
	require.NoError(t, err)
	require.Len(t, logged, 1)
	require.Equal(t, "process_start", logged[0].Intention)
}

func TestSendFallsBackWhenNoTemplateExists(t *testing.T) {
	s := newTestStore(t)
	backend := &captureBackend{}
	r := New(s, notify.NewDispatcher(nil, backend))

	err := r.Send(context.Background(), "no_such_intention", Context{User: "anders", Day: "Monday"}, false)
	require.NoError(t, err)
	require.NotEmpty(t, backend.last.Title)
}

func TestUnknownPlaceholderPreservedLiterally(t *testing.T) {
	require.Equal(t, "hello {nope} world", render("hello {nope} world", map[string]string{"user": "anders"}))
	require.Equal(t, "hi anders", render("hi {user}", map[string]string{"user": "anders"}))
}

func TestReplacePreviousReusesNotificationID(t *testing.T) {
	s := newTestStore(t)
	backend := &captureBackend{}
	r := New(s, notify.NewDispatcher(nil, backend))
	ctx := context.Background()

	require.NoError(t, r.Send(ctx, "grace_period", Context{User: "anders", Process: "Foo.exe", GraceSeconds: 30}, true))
	require.Equal(t, int64(0), backend.last.ReplacesID, "first send has nothing to replace")

	require.NoError(t, r.Send(ctx, "grace_period", Context{User: "anders", Process: "Foo.exe", GraceSeconds: 20}, true))
	require.Equal(t, int64(42), backend.last.ReplacesID, "second send should replace the first notification")
}
