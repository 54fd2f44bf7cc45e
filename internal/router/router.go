// Package router renders a typed intention into a notification using
// stored templates, dispatches it, and logs the result.
package router

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"sync"

	"github.com/aaronsb/playtimed/internal/notify"
	"github.com/aaronsb/playtimed/internal/store"
)

// Context carries the substitution fields a template placeholder may
// reference. Unknown placeholders are preserved literally, never raise.
type Context struct {
	User          string
	Process       string
	Pattern       string
	TimeLeft      int64 // minutes
	TimeUsed      int64 // minutes
	TimeLimit     int64 // minutes
	Category      string
	Day           string
	Mode          string
	GraceSeconds  int
	AllowedWindow string
}

func (c Context) fields() map[string]string {
	return map[string]string{
		"user":           c.User,
		"process":        c.Process,
		"pattern":        c.Pattern,
		"time_left":      strconv.FormatInt(c.TimeLeft, 10),
		"time_used":      strconv.FormatInt(c.TimeUsed, 10),
		"time_limit":     strconv.FormatInt(c.TimeLimit, 10),
		"category":       c.Category,
		"day":            c.Day,
		"mode":           c.Mode,
		"grace_seconds":  strconv.Itoa(c.GraceSeconds),
		"allowed_window": c.AllowedWindow,
	}
}

var placeholderRe = regexp.MustCompile(`\{(\w+)\}`)

func render(tmpl string, fields map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := m[1 : len(m)-1]
		if v, ok := fields[name]; ok {
			return v
		}
		return m
	})
}

var fallbacks = map[string][2]string{
	"process_start":   {"Game started", "{process} is now running."},
	"process_end":     {"Game ended", "{process} has closed."},
	"time_warning_30": {"30 minutes left", "You have 30 minutes remaining."},
	"time_warning_15": {"15 minutes left", "You have 15 minutes remaining."},
	"time_warning_5":  {"5 minutes left", "Almost time to stop!"},
	"time_expired":    {"Time is up", "Your gaming time has ended."},
	"grace_period":    {"Closing soon", "{process} will close in {grace_seconds} seconds."},
	"enforcement":     {"Game closed", "{process} was terminated."},
	"blocked_launch":  {"Blocked", "{process} cannot run right now."},
	"outside_hours":   {"Outside allowed hours", "{process} cannot run right now."},
	"discovery":       {"New app", "Detected {process}."},
	"day_reset":       {"New day", "Your gaming time has reset for today."},
	"mode_change":     {"Mode changed", "Monitoring mode is now {mode}."},
	"strict_warning":  {"Unrecognised app", "{process} will be closed in {grace_seconds} seconds unless approved."},
}

// Router picks a template, renders it, dispatches it, and records a
// message-log row.
type Router struct {
	st         *store.Store
	dispatcher *notify.Dispatcher

	mu               sync.Mutex
	lastNotification map[string]int64 // intention -> last notification id, for replace_previous
}

func New(st *store.Store, dispatcher *notify.Dispatcher) *Router {
	return &Router{st: st, dispatcher: dispatcher, lastNotification: make(map[string]int64)}
}

// Send renders and dispatches a notification for intention, optionally
// replacing the prior notification of the same intention (used by
// grace_period's countdown).
func (r *Router) Send(ctx context.Context, intention string, c Context, replacePrevious bool) error {
	fields := c.fields()

	tmpl, err := r.st.RandomTemplate(ctx, intention)
	if err != nil {
		return fmt.Errorf("pick template for %s: %w", intention, err)
	}

	var title, body, icon string
	var urgency store.Urgency
	var templateID int64
	if tmpl != nil {
		title = render(tmpl.Title, fields)
		body = render(tmpl.Body, fields)
		icon = tmpl.Icon
		urgency = tmpl.Urgency
		templateID = tmpl.ID
	} else {
		fb, ok := fallbacks[intention]
		if !ok {
			fb = [2]string{intention, "Notification"}
		}
		title = render(fb[0], fields)
		body = render(fb[1], fields)
		urgency = store.UrgencyNormal
	}

	var replacesID int64
	if replacePrevious {
		r.mu.Lock()
		replacesID = r.lastNotification[intention]
		r.mu.Unlock()
	}

	res, err := r.dispatcher.Send(ctx, notify.Message{
		TargetUser: c.User,
		Title:      title,
		Body:       body,
		Urgency:    notify.Urgency(urgency),
		Icon:       icon,
		ReplacesID: replacesID,
	})
	if err != nil {
		return fmt.Errorf("dispatch %s: %w", intention, err)
	}

	if res.NotificationID > 0 {
		r.mu.Lock()
		r.lastNotification[intention] = res.NotificationID
		r.mu.Unlock()
	}

	if _, err := r.st.RecordMessage(ctx, store.MessageLogRow{
		User: c.User, Intention: intention, TemplateID: templateID,
		RenderedTitle: title, RenderedBody: body, Backend: res.Backend, NotificationID: res.NotificationID,
	}); err != nil {
		return fmt.Errorf("log message for %s: %w", intention, err)
	}
	return nil
}
