// Package notify implements the notification dispatcher: a tagged sum
// type over three backend tiers tried in priority order, never
// expressed as inheritance (a rich widget, a standard desktop
// notification service, and an always-available log-only sink).
package notify

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/aaronsb/playtimed/pkg/logger"
)

// Urgency mirrors store.Urgency without importing the store package,
// keeping the dispatcher usable standalone.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyNormal   Urgency = "normal"
	UrgencyCritical Urgency = "critical"
)

// Message is what the Router asks a Backend to deliver.
type Message struct {
	TargetUser string
	Title      string
	Body       string
	Urgency    Urgency
	Icon       string
	ReplacesID int64 // 0 means "new notification"
}

// Result is what a Backend returns on success.
type Result struct {
	NotificationID int64
	Backend        string
}

// Backend is one notification delivery tier. Distinct backend structs
// implement this interface; Dispatcher tries them in priority order.
// This is the sum-type-plus-dispatcher shape the design calls for, not
// a base-class hierarchy.
type Backend interface {
	Name() string
	Send(ctx context.Context, m Message) (Result, error)
}

// Dispatcher tries backends in construction order and falls through to
// the next on failure. The final backend passed to New should always
// succeed (a log-only sink) so delivery never blocks the Router.
type Dispatcher struct {
	backends []Backend
	log      *logger.Logger
}

func NewDispatcher(log *logger.Logger, backends ...Backend) *Dispatcher {
	return &Dispatcher{backends: backends, log: log}
}

// Send tries each backend in priority order, returning the first
// success. Per the dispatcher contract, the caller may pass a prior
// notification id via m.ReplacesID to request replace_previous
// behaviour (used by grace_period's countdown).
func (d *Dispatcher) Send(ctx context.Context, m Message) (Result, error) {
	var lastErr error
	for _, b := range d.backends {
		res, err := b.Send(ctx, m)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if d.log != nil {
			d.log.Warn("notification backend failed, falling through", "backend", b.Name(), "error", err)
		}
	}
	return Result{}, fmt.Errorf("all notification backends failed: %w", lastErr)
}

// RichWidgetBackend is the highest-priority tier: an animated,
// application-specific widget. Its transport is out of scope (§1
// deliberately excludes the notification transport itself); this
// implementation is a thin client over the same D-Bus session bus used
// by DesktopBackend, addressing a distinct well-known name so a desktop
// environment that ships the richer widget gets it, and one that
// doesn't falls through cleanly.
type RichWidgetBackend struct {
	conn *dbus.Conn
	dest string
}

func NewRichWidgetBackend(conn *dbus.Conn, dest string) *RichWidgetBackend {
	return &RichWidgetBackend{conn: conn, dest: dest}
}

func (r *RichWidgetBackend) Name() string { return "rich_widget" }

func (r *RichWidgetBackend) Send(ctx context.Context, m Message) (Result, error) {
	if r.conn == nil {
		return Result{}, fmt.Errorf("rich widget service unavailable")
	}
	obj := r.conn.Object(r.dest, "/widget")
	call := obj.CallWithContext(ctx, r.dest+".Show", 0, m.Title, m.Body, string(m.Urgency), m.Icon, m.ReplacesID)
	if call.Err != nil {
		return Result{}, fmt.Errorf("rich widget call: %w", call.Err)
	}
	var id int64
	if err := call.Store(&id); err != nil {
		return Result{}, fmt.Errorf("rich widget response: %w", err)
	}
	return Result{NotificationID: id, Backend: r.Name()}, nil
}

// DesktopBackend is the standard desktop notification service tier:
// org.freedesktop.Notifications over the session bus, addressed
// directly instead of shelling out to notify-send.
type DesktopBackend struct {
	conn *dbus.Conn
}

func NewDesktopBackend(conn *dbus.Conn) *DesktopBackend { return &DesktopBackend{conn: conn} }

func (d *DesktopBackend) Name() string { return "desktop_notification" }

const freedesktopNotifications = "org.freedesktop.Notifications"

func (d *DesktopBackend) Send(ctx context.Context, m Message) (Result, error) {
	if d.conn == nil {
		return Result{}, fmt.Errorf("session bus unavailable")
	}
	obj := d.conn.Object(freedesktopNotifications, "/org/freedesktop/Notifications")
	var replaces uint32
	if m.ReplacesID > 0 {
		replaces = uint32(m.ReplacesID)
	}
	call := obj.CallWithContext(ctx, freedesktopNotifications+".Notify", 0,
		"playtimed", replaces, m.Icon, m.Title, m.Body, []string{}, map[string]dbus.Variant{
			"urgency": dbus.MakeVariant(urgencyByte(m.Urgency)),
		}, int32(notifyTimeoutMillis))
	if call.Err != nil {
		return Result{}, fmt.Errorf("notify call: %w", call.Err)
	}
	var id uint32
	if err := call.Store(&id); err != nil {
		return Result{}, fmt.Errorf("notify response: %w", err)
	}
	return Result{NotificationID: int64(id), Backend: d.Name()}, nil
}

const notifyTimeoutMillis = 10000

func urgencyByte(u Urgency) byte {
	switch u {
	case UrgencyLow:
		return 0
	case UrgencyCritical:
		return 2
	default:
		return 1
	}
}

// LogSink is the always-available last-resort tier: it writes the
// notification to the daemon log instead of delivering it anywhere.
type LogSink struct {
	log *logger.Logger
}

func NewLogSink(log *logger.Logger) *LogSink { return &LogSink{log: log} }

func (l *LogSink) Name() string { return "log_only" }

func (l *LogSink) Send(ctx context.Context, m Message) (Result, error) {
	if l.log != nil {
		l.log.Info("notification (log-only tier)", "user", m.TargetUser, "title", m.Title, "body", m.Body, "urgency", m.Urgency)
	}
	return Result{NotificationID: 0, Backend: l.Name()}, nil
}
