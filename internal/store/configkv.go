package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
)

// GetDaemonConfig reads the daemon mode / strict-grace singleton.
func (s *Store) GetDaemonConfig(ctx context.Context) (DaemonConfigRow, error) {
	var cfg DaemonConfigRow
	mode, err := s.getConfigValue(ctx, "daemon_config", "mode")
	if err != nil {
		return cfg, err
	}
	cfg.Mode = DaemonMode(mode)

	graceStr, err := s.getConfigValue(ctx, "daemon_config", "strict_grace_seconds")
	if err != nil {
		return cfg, err
	}
	grace, err := strconv.Atoi(graceStr)
	if err != nil {
		grace = 30
	}
	cfg.StrictGraceSeconds = grace
	return cfg, nil
}

// SetDaemonMode validates and writes a new daemon mode (`mode` CLI
// command). Returns an error without touching the Store on an invalid
// mode string.
func (s *Store) SetDaemonMode(ctx context.Context, mode string) error {
	switch DaemonMode(mode) {
	case ModeNormal, ModePassthrough, ModeStrict:
	default:
		return fmt.Errorf("invalid mode %q: must be one of normal, passthrough, strict", mode)
	}
	return s.setConfigValue(ctx, "daemon_config", "mode", mode)
}

// GetDiscoveryConfig reads the discovery-pipeline parameter singleton.
func (s *Store) GetDiscoveryConfig(ctx context.Context) (DiscoveryConfig, error) {
	var cfg DiscoveryConfig
	enabledStr, err := s.getConfigValue(ctx, "discovery_config", "enabled")
	if err != nil {
		return cfg, err
	}
	cfg.Enabled = enabledStr == "1"

	thresholdStr, err := s.getConfigValue(ctx, "discovery_config", "cpu_threshold")
	if err != nil {
		return cfg, err
	}
	cfg.CPUThreshold, _ = strconv.ParseFloat(thresholdStr, 64)

	windowStr, err := s.getConfigValue(ctx, "discovery_config", "sample_window_seconds")
	if err != nil {
		return cfg, err
	}
	cfg.SampleWindowSeconds, _ = strconv.Atoi(windowStr)

	minStr, err := s.getConfigValue(ctx, "discovery_config", "min_samples")
	if err != nil {
		return cfg, err
	}
	cfg.MinSamples, _ = strconv.Atoi(minStr)

	return cfg, nil
}

// SetDiscoveryConfig persists a field in the discovery_config table
// (`discover config`).
func (s *Store) SetDiscoveryConfig(ctx context.Context, key, value string) error {
	switch key {
	case "enabled", "cpu_threshold", "sample_window_seconds", "min_samples":
	default:
		return fmt.Errorf("unknown discovery config key: %s", key)
	}
	return s.setConfigValue(ctx, "discovery_config", key, value)
}

func (s *Store) getConfigValue(ctx context.Context, table, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT value FROM %s WHERE key = ?`, table), key).Scan(&v)
	if err != nil {
		return "", fmt.Errorf("read %s.%s: %w", table, key, err)
	}
	return v, nil
}

func (s *Store) setConfigValue(ctx context.Context, table, key, value string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, fmt.Sprintf(`
			INSERT INTO %s (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, table), key, value)
		return err
	})
}
