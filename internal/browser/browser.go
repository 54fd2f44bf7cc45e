// Package browser resolves which web domains are open in a user's
// browser windows by reading window titles over D-Bus (KWin's
// org.kde.krunner1 Match interface) and matching them against a
// site-signature table, the same technique the window manager's own
// "type to search" feature uses.
package browser

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/godbus/dbus/v5"
)

// siteSignatures maps a keyword found in a window title to the domain
// it represents. Longer signatures are checked first so "YouTube Music"
// doesn't get swallowed by the "YouTube" entry.
var siteSignatures = map[string]string{
	"Discord":         "discord.com",
	"YouTube Music":   "music.youtube.com",
	"YouTube":         "youtube.com",
	"IXL":             "ixl.com",
	"Google Search":   "google.com",
	"Google":          "google.com",
	"Gmail":           "mail.google.com",
	"Twitch":          "twitch.tv",
	"Reddit":          "reddit.com",
	"Twitter":         "twitter.com",
	"GitHub":          "github.com",
	"Netflix":         "netflix.com",
	"Amazon":          "amazon.com",
	"Wikipedia":       "wikipedia.org",
	"Stack Overflow":  "stackoverflow.com",
	"Coolmath Games":  "coolmathgames.com",
	"Poki":            "poki.com",
	"Roblox":          "roblox.com",
}

var orderedSignatures = func() []string {
	keys := make([]string, 0, len(siteSignatures))
	for k := range siteSignatures {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })
	return keys
}()

// browserSuffixToID maps a window-title suffix to the browser that
// produced it. Firefox's own suffix is checked after the combined
// " - Mozilla Firefox" one since both can appear depending on locale.
var browserSuffixToID = []struct{ suffix, id string }{
	{" - Google Chrome", "chrome"},
	{" - Chromium", "chromium"},
	{" - Mozilla Firefox", "firefox"},
	{" - Firefox", "firefox"},
	{" - Brave", "brave"},
	{" - Microsoft Edge", "edge"},
}

var notificationCountPrefix = regexp.MustCompile(`^\(\d+\)\s*`)
var nonWordChars = regexp.MustCompile(`[^\w\s-]`)

// Window is one open window as reported by the window manager.
type Window struct {
	ID    string
	Title string
}

// WindowSource abstracts the window-list query so tests can supply
// fixed window titles without a running session bus.
type WindowSource interface {
	Windows(ctx context.Context) ([]Window, error)
}

// KWinSource queries KWin's krunner-compatible D-Bus interface for the
// full window list, the same interface KDE's "type to search" run
// dialog uses.
type KWinSource struct {
	conn *dbus.Conn
}

func NewKWinSource(conn *dbus.Conn) *KWinSource { return &KWinSource{conn: conn} }

// DialUserSessionBus connects to a specific user's session bus rather
// than the calling process's own, since the daemon runs as root and
// must inspect each monitored user's windows individually.
func DialUserSessionBus(uid int) (*dbus.Conn, error) {
	addr := fmt.Sprintf("unix:path=/run/user/%d/bus", uid)
	conn, err := dbus.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("dial session bus for uid %d: %w", uid, err)
	}
	if err := conn.Auth(nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("authenticate session bus for uid %d: %w", uid, err)
	}
	if err := conn.Hello(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("hello session bus for uid %d: %w", uid, err)
	}
	return conn, nil
}

func (k *KWinSource) Windows(ctx context.Context) ([]Window, error) {
	if k.conn == nil {
		return nil, nil
	}
	obj := k.conn.Object("org.kde.KWin", "/WindowsRunner")
	call := obj.CallWithContext(ctx, "org.kde.krunner1.Match", 0, "")
	if call.Err != nil {
		return nil, call.Err
	}
	var matches []struct {
		ID        string
		Title     string
		IconName  string
		Relevance float64
		Score     uint32
		Props     map[string]dbus.Variant
	}
	if err := call.Store(&matches); err != nil {
		return nil, err
	}
	out := make([]Window, 0, len(matches))
	for _, m := range matches {
		out = append(out, Window{ID: m.ID, Title: m.Title})
	}
	return out, nil
}

// ExtractDomain parses a window title into (domain, browser). It
// returns ok=false for a title that doesn't belong to a known browser
// at all. An unrecognised site still yields a domain of the form
// "unknown:<cleaned title>" so the discovery pipeline can track it.
func ExtractDomain(title string) (domain, browserID string, ok bool) {
	stripped := title
	matched := false
	for _, m := range browserSuffixToID {
		if strings.HasSuffix(stripped, m.suffix) {
			stripped = strings.TrimSuffix(stripped, m.suffix)
			browserID = m.id
			matched = true
			break
		}
	}
	if !matched {
		return "", "", false
	}

	stripped = notificationCountPrefix.ReplaceAllString(stripped, "")

	for _, sig := range orderedSignatures {
		if strings.Contains(stripped, sig) {
			return siteSignatures[sig], browserID, true
		}
	}

	if idx := strings.LastIndex(stripped, " | "); idx >= 0 {
		siteName := strings.TrimSpace(stripped[idx+3:])
		if d, known := siteSignatures[siteName]; known {
			return d, browserID, true
		}
	}

	cleaned := strings.TrimSpace(nonWordChars.ReplaceAllString(stripped, ""))
	if len(cleaned) > 50 {
		cleaned = cleaned[:50]
	}
	if cleaned == "" {
		return "", browserID, true
	}
	return "unknown:" + cleaned, browserID, true
}

// Resolver turns a user's open windows into a deduplicated domain ->
// browser map, the daemon tick's browser-scan input.
type Resolver struct {
	source WindowSource
}

func New(source WindowSource) *Resolver { return &Resolver{source: source} }

// ActiveDomains returns the distinct, named (non "unknown:") domains
// currently open in a browser window, first-seen-wins on duplicates.
func (r *Resolver) ActiveDomains(ctx context.Context) (map[string]string, error) {
	windows, err := r.source.Windows(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	for _, w := range windows {
		domain, browserID, ok := ExtractDomain(w.Title)
		if !ok || domain == "" || strings.HasPrefix(domain, "unknown:") {
			continue
		}
		if _, seen := out[domain]; !seen {
			out[domain] = browserID
		}
	}
	return out, nil
}
