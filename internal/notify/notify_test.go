package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	name string
	err  error
	res  Result
}

func (f fakeBackend) Name() string { return f.name }
func (f fakeBackend) Send(ctx context.Context, m Message) (Result, error) {
	if f.err != nil {
		return Result{}, f.err
	}
	return f.res, nil
}

func TestDispatcherFallsThroughOnFailure(t *testing.T) {
	d := NewDispatcher(nil,
		fakeBackend{name: "rich_widget", err: errors.New("unavailable")},
		fakeBackend{name: "desktop_notification", res: Result{NotificationID: 7, Backend: "desktop_notification"}},
		fakeBackend{name: "log_only", res: Result{Backend: "log_only"}},
	)

	res, err := d.Send(context.Background(), Message{Title: "t", Body: "b"})
	require.NoError(t, err)
	require.Equal(t, "desktop_notification", res.Backend)
	require.Equal(t, int64(7), res.NotificationID)
}

func TestDispatcherFinalTierAlwaysSucceeds(t *testing.T) {
	d := NewDispatcher(nil,
		fakeBackend{name: "rich_widget", err: errors.New("unavailable")},
		fakeBackend{name: "desktop_notification", err: errors.New("unavailable")},
		fakeBackend{name: "log_only", res: Result{Backend: "log_only"}},
	)

	res, err := d.Send(context.Background(), Message{Title: "t", Body: "b"})
	require.NoError(t, err)
	require.Equal(t, "log_only", res.Backend)
}

func TestLogSinkAlwaysSucceeds(t *testing.T) {
	l := NewLogSink(nil)
	res, err := l.Send(context.Background(), Message{Title: "t", Body: "b", TargetUser: "anders"})
	require.NoError(t, err)
	require.Equal(t, "log_only", res.Backend)
}
