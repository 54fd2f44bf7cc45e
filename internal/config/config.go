// Package config carries the daemon's bootstrap defaults. Nearly every
// field here is shadowed by a Store-backed value the moment the daemon
// starts; config only supplies what the Store cannot yet have an opinion
// about (where the Store file itself lives, how verbose to log, how
// often to tick).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DaemonConfig is the daemon's full bootstrap configuration.
type DaemonConfig struct {
	Database  DatabaseConfig  `json:"database" yaml:"database"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
	Scheduler SchedulerConfig `json:"scheduler" yaml:"scheduler"`
	Discovery DiscoveryConfig `json:"discovery" yaml:"discovery"`
	Enforcer  EnforcerConfig  `json:"enforcer" yaml:"enforcer"`
	HTTP      HTTPConfig      `json:"http" yaml:"http"`
}

type DatabaseConfig struct {
	Path string `json:"path" yaml:"path"`
}

type LoggingConfig struct {
	Level string `json:"level" yaml:"level"`
}

type SchedulerConfig struct {
	PollInterval      time.Duration `json:"poll_interval" yaml:"poll_interval"`
	ControlReloadTicks int          `json:"control_reload_ticks" yaml:"control_reload_ticks"`
}

type DiscoveryConfig struct {
	Enabled             bool    `json:"enabled" yaml:"enabled"`
	CPUThreshold        float64 `json:"cpu_threshold" yaml:"cpu_threshold"`
	SampleWindowSeconds int     `json:"sample_window_seconds" yaml:"sample_window_seconds"`
	MinSamples          int     `json:"min_samples" yaml:"min_samples"`
}

type EnforcerConfig struct {
	GracefulWait       time.Duration `json:"graceful_wait" yaml:"graceful_wait"`
	StrictGraceSeconds int           `json:"strict_grace_seconds" yaml:"strict_grace_seconds"`
}

// HTTPConfig controls the localhost-only status/health endpoint.
type HTTPConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	ListenAddr string `json:"listen_addr" yaml:"listen_addr"`
}

// NewDefaultConfig returns the built-in defaults, used when no config
// file is present and as the base that a loaded file is merged onto.
func NewDefaultConfig() *DaemonConfig {
	return &DaemonConfig{
		Database: DatabaseConfig{
			Path: "/var/lib/playtimed/playtimed.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Scheduler: SchedulerConfig{
			PollInterval:       30 * time.Second,
			ControlReloadTicks: 10,
		},
		Discovery: DiscoveryConfig{
			Enabled:             true,
			CPUThreshold:        25.0,
			SampleWindowSeconds: 120,
			MinSamples:          3,
		},
		Enforcer: EnforcerConfig{
			GracefulWait:       10 * time.Second,
			StrictGraceSeconds: 30,
		},
		HTTP: HTTPConfig{
			Enabled:    true,
			ListenAddr: "127.0.0.1:9342",
		},
	}
}

// Load reads a YAML config file at path, merging onto NewDefaultConfig.
// A missing file is not an error: the daemon runs on built-in defaults,
// per the legacy-config-is-optional design note. Any other read/parse
// failure is returned.
func Load(path string) (*DaemonConfig, error) {
	cfg := NewDefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
