package store

// baseSchema creates every table playtimed needs if it is missing. It is
// safe to run against an already-migrated database: every statement is
// `IF NOT EXISTS`. Column additions for older databases happen in
// Migrate, not here, mirroring original_source/db.py's split between
// init_db (fresh schema) and migrate_db (upgrade existing rows).
const baseSchema = `
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	user TEXT NOT NULL,
	event_type TEXT NOT NULL,
	app TEXT,
	category TEXT,
	details TEXT,
	pid INTEGER
);

CREATE TABLE IF NOT EXISTS daily_summary (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	date TEXT NOT NULL,
	user TEXT NOT NULL,
	total_time INTEGER NOT NULL DEFAULT 0,
	gaming_time INTEGER NOT NULL DEFAULT 0,
	session_count INTEGER NOT NULL DEFAULT 0,
	warnings_sent INTEGER NOT NULL DEFAULT 0,
	enforcements INTEGER NOT NULL DEFAULT 0,
	gaming_active INTEGER NOT NULL DEFAULT 0,
	gaming_started_at TEXT,
	last_poll_at TEXT,
	warned_30 INTEGER NOT NULL DEFAULT 0,
	warned_15 INTEGER NOT NULL DEFAULT 0,
	warned_5 INTEGER NOT NULL DEFAULT 0,
	UNIQUE(date, user)
);

CREATE TABLE IF NOT EXISTS hourly_activity (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	date TEXT NOT NULL,
	hour INTEGER NOT NULL,
	user TEXT NOT NULL,
	gaming_seconds INTEGER NOT NULL DEFAULT 0,
	total_seconds INTEGER NOT NULL DEFAULT 0,
	UNIQUE(date, hour, user)
);

CREATE TABLE IF NOT EXISTS sessions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user TEXT NOT NULL,
	app TEXT NOT NULL,
	category TEXT,
	pid INTEGER,
	start_time TEXT NOT NULL,
	end_time TEXT,
	duration INTEGER,
	end_reason TEXT
);

CREATE TABLE IF NOT EXISTS process_patterns (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	pattern TEXT NOT NULL,
	name TEXT NOT NULL,
	category TEXT,
	pattern_type TEXT NOT NULL DEFAULT 'process',
	browser TEXT,
	monitor_state TEXT NOT NULL DEFAULT 'active',
	owner TEXT,
	enabled INTEGER NOT NULL DEFAULT 1,
	cpu_threshold REAL DEFAULT 5.0,
	discovered_cmdline TEXT,
	unique_pid_count INTEGER DEFAULT 0,
	total_runtime_seconds INTEGER DEFAULT 0,
	last_seen TEXT,
	notes TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS seen_pids (
	pattern_id INTEGER NOT NULL,
	pid INTEGER NOT NULL,
	first_seen TEXT NOT NULL,
	PRIMARY KEY (pattern_id, pid),
	FOREIGN KEY (pattern_id) REFERENCES process_patterns(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS discovery_config (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	description TEXT
);

CREATE TABLE IF NOT EXISTS user_limits (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user TEXT NOT NULL UNIQUE,
	enabled INTEGER NOT NULL DEFAULT 1,
	daily_total INTEGER NOT NULL DEFAULT 180,
	schedule TEXT NOT NULL DEFAULT '',
	daily_limits TEXT NOT NULL DEFAULT '120,120,120,120,120,120,120',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS daemon_config (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	description TEXT
);

CREATE TABLE IF NOT EXISTS message_templates (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	intention TEXT NOT NULL,
	variant INTEGER NOT NULL DEFAULT 0,
	title TEXT NOT NULL,
	body TEXT NOT NULL,
	icon TEXT DEFAULT 'dialog-information',
	urgency TEXT DEFAULT 'normal',
	enabled INTEGER DEFAULT 1,
	created_at TEXT NOT NULL,
	UNIQUE(intention, variant)
);

CREATE TABLE IF NOT EXISTS message_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	user TEXT NOT NULL,
	intention TEXT NOT NULL,
	template_id INTEGER,
	rendered_title TEXT,
	rendered_body TEXT,
	notification_id INTEGER,
	backend TEXT,
	FOREIGN KEY (template_id) REFERENCES message_templates(id)
);

CREATE INDEX IF NOT EXISTS idx_events_user_date ON events(user, timestamp);
CREATE INDEX IF NOT EXISTS idx_daily_user_date ON daily_summary(user, date);
CREATE INDEX IF NOT EXISTS idx_hourly_user_date ON hourly_activity(user, date);
CREATE INDEX IF NOT EXISTS idx_sessions_user_date ON sessions(user, start_time);
CREATE INDEX IF NOT EXISTS idx_patterns_category ON process_patterns(category, enabled);
CREATE INDEX IF NOT EXISTS idx_patterns_state ON process_patterns(monitor_state);
CREATE INDEX IF NOT EXISTS idx_patterns_owner ON process_patterns(owner);
CREATE INDEX IF NOT EXISTS idx_patterns_type ON process_patterns(pattern_type);
CREATE INDEX IF NOT EXISTS idx_templates_intention ON message_templates(intention, enabled);
CREATE INDEX IF NOT EXISTS idx_message_log_user_time ON message_log(user, timestamp);
`

// defaultTemplates seeds one or more variants per intention so the Router
// always has something to render even before an admin customizes them.
var defaultTemplates = []MessageTemplate{
	{Intention: "process_start", Variant: 0, Title: "{process} started", Body: "{user} started {process} ({category})", Icon: "dialog-information", Urgency: UrgencyLow},
	{Intention: "process_end", Variant: 0, Title: "{process} ended", Body: "{user}'s session of {process} has ended", Icon: "dialog-information", Urgency: UrgencyLow},
	{Intention: "time_warning_30", Variant: 0, Title: "30 minutes left", Body: "{user}, you have about 30 minutes of gaming time left today", Icon: "appointment-soon", Urgency: UrgencyNormal},
	{Intention: "time_warning_15", Variant: 0, Title: "15 minutes left", Body: "{user}, 15 minutes of gaming time remain", Icon: "appointment-soon", Urgency: UrgencyNormal},
	{Intention: "time_warning_5", Variant: 0, Title: "5 minutes left", Body: "{user}, only 5 minutes of gaming time left — wrap it up!", Icon: "dialog-warning", Urgency: UrgencyCritical},
	{Intention: "time_expired", Variant: 0, Title: "Time's up", Body: "{user}, today's gaming time ({time_limit} minutes) is used up", Icon: "dialog-warning", Urgency: UrgencyCritical},
	{Intention: "grace_period", Variant: 0, Title: "Save now", Body: "{user}, you have {grace_seconds} seconds to save before {process} is closed", Icon: "dialog-warning", Urgency: UrgencyCritical},
	{Intention: "enforcement", Variant: 0, Title: "{process} closed", Body: "{process} was closed for {user} (reason: over time limit)", Icon: "process-stop", Urgency: UrgencyNormal},
	{Intention: "blocked_launch", Variant: 0, Title: "{process} blocked", Body: "{user} tried to start {process}, which is not allowed", Icon: "process-stop", Urgency: UrgencyNormal},
	{Intention: "outside_hours", Variant: 0, Title: "Outside allowed hours", Body: "{user}, {process} isn't allowed right now ({allowed_window})", Icon: "appointment-missed", Urgency: UrgencyNormal},
	{Intention: "discovery", Variant: 0, Title: "New activity discovered", Body: "A new pattern for {process} was discovered for {user}", Icon: "dialog-information", Urgency: UrgencyLow},
	{Intention: "day_reset", Variant: 0, Title: "New day", Body: "{user}'s gaming budget has reset for {day}", Icon: "dialog-information", Urgency: UrgencyLow},
	{Intention: "mode_change", Variant: 0, Title: "Mode changed", Body: "playtimed is now running in {mode} mode", Icon: "dialog-information", Urgency: UrgencyNormal},
	{Intention: "strict_warning", Variant: 0, Title: "Unrecognized process", Body: "{user}, {process} isn't on the allow-list — it will be closed in {grace_seconds}s unless approved", Icon: "dialog-warning", Urgency: UrgencyCritical},
}
