// Package store is the durable home for every playtimed entity: user
// limits, the pattern catalogue, daily/hourly accounting rows, sessions,
// the audit event log, message templates and the message log, and the
// discovery/daemon configuration singletons. It is the only coordination
// point between the daemon and the CLI.
package store

import "time"

// MonitorState is the lifecycle state of a Pattern row.
type MonitorState string

const (
	StateActive     MonitorState = "active"
	StateDiscovered MonitorState = "discovered"
	StateIgnored    MonitorState = "ignored"
	StateDisallowed MonitorState = "disallowed"
)

// Category classifies what a Pattern's time is spent on.
type Category string

const (
	CategoryGaming      Category = "gaming"
	CategoryLauncher    Category = "launcher"
	CategoryProductive  Category = "productive"
	CategoryEducational Category = "educational"
	CategoryCreative    Category = "creative"
	CategoryNone        Category = ""
)

// PatternType distinguishes process patterns from browser-domain patterns.
type PatternType string

const (
	PatternProcess       PatternType = "process"
	PatternBrowserDomain PatternType = "browser_domain"
)

// EndReason explains why a Session row was closed.
type EndReason string

const (
	EndNatural EndReason = "natural"
	EndEnforced EndReason = "enforced"
	EndLogout  EndReason = "logout"
	EndUnknown EndReason = "unknown"
)

// DaemonMode selects enforcement behaviour for the whole host.
type DaemonMode string

const (
	ModeNormal      DaemonMode = "normal"
	ModePassthrough DaemonMode = "passthrough"
	ModeStrict      DaemonMode = "strict"
)

// Urgency is the desktop-notification urgency level of a template/message.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyNormal   Urgency = "normal"
	UrgencyCritical Urgency = "critical"
)

// UserLimit is the per-user configuration row: enablement, daily total,
// weekly schedule and per-weekday gaming limits.
type UserLimit struct {
	ID                int64
	Username          string
	Enabled           bool
	DailyTotalMinutes int
	Schedule          string // 168 chars, '0'/'1', day*24+hour, Monday=0
	DailyLimits       [7]int // minutes of gaming per weekday, Monday=0
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Pattern is one catalogue entry: how to recognise a process or browser
// tab, and how the engine should treat matches of it.
type Pattern struct {
	ID                  int64
	PatternText         string
	DisplayName         string
	Category            Category
	PatternType         PatternType
	Browser             string // "chrome", "chromium", "firefox"; empty for process patterns
	MonitorState        MonitorState
	Owner               string // username, empty = global
	Enabled             bool
	CPUThreshold        float64
	DiscoveredCmdline   string
	UniquePIDCount      int64
	TotalRuntimeSeconds int64
	LastSeen            time.Time
	Notes               string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// SeenPID records that a pid has been attributed to a Pattern at least once.
type SeenPID struct {
	PatternID int64
	PID       int
	FirstSeen time.Time
}

// DailySummary is the per-user per-day accounting row, including the
// accounting state-machine fields.
type DailySummary struct {
	ID               int64
	Date             string // YYYY-MM-DD, local calendar day
	User             string
	TotalTimeSeconds   int64
	GamingTimeSeconds  int64
	SessionCount     int
	WarningsSent     int
	Enforcements     int
	GamingActive     bool
	GamingStartedAt  time.Time
	LastPollAt       time.Time
	Warned30         bool
	Warned15         bool
	Warned5          bool
}

// HourlyActivity is the per-user per-hour-of-day accounting row feeding
// the heat-map view.
type HourlyActivity struct {
	ID            int64
	Date          string
	Hour          int
	User          string
	GamingSeconds int64
	TotalSeconds  int64
}

// Session is one detected process lifetime.
type Session struct {
	ID        int64
	User      string
	App       string
	Category  Category
	PID       int
	StartTime time.Time
	EndTime   *time.Time
	Duration  *int64
	EndReason EndReason
}

// Event is one append-only audit-log row.
type Event struct {
	ID        int64
	Timestamp time.Time
	User      string
	EventType string
	App       string
	Category  Category
	Details   string
	PID       int
}

// MessageTemplate is one (intention, variant) notification template.
type MessageTemplate struct {
	ID        int64
	Intention string
	Variant   int
	Title     string
	Body      string
	Icon      string
	Urgency   Urgency
	Enabled   bool
	CreatedAt time.Time
}

// MessageLogRow is an append-only record of a sent notification.
type MessageLogRow struct {
	ID             int64
	Timestamp      time.Time
	User           string
	Intention      string
	TemplateID     int64
	RenderedTitle  string
	RenderedBody   string
	Backend        string
	NotificationID int64
}

// DiscoveryConfig is the discovery-pipeline parameter singleton.
type DiscoveryConfig struct {
	Enabled            bool
	CPUThreshold       float64
	SampleWindowSeconds int
	MinSamples         int
}

// DaemonConfigRow is the daemon-mode parameter singleton.
type DaemonConfigRow struct {
	Mode               DaemonMode
	StrictGraceSeconds int
}
