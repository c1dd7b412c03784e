package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapgov/internal/cli/output"
	"github.com/leapstack-labs/leapgov/internal/fileutil"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.RulesPath == "" {
		return fmt.Errorf("rules_path is required")
	}
	if !fileutil.ValidAlgo(c.Checksum) {
		return fmt.Errorf("unknown checksum algorithm %q (want md5, sha256 or xxh3)", c.Checksum)
	}
	if c.PIISampleLimit < 0 {
		return fmt.Errorf("pii_sample_limit must not be negative, got %d", c.PIISampleLimit)
	}
	if c.Parallelism < 0 {
		return fmt.Errorf("parallelism must not be negative, got %d", c.Parallelism)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if !output.IsValidMode(c.OutputFormat) {
		return fmt.Errorf("unknown output format %q (want %s)", c.OutputFormat, strings.Join(output.ModeNames(), ", "))
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("invalid store configuration: %w", err)
	}
	return nil
}

// ParseLogLevel maps a level name to a slog level. Empty means info.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug, info, warn or error)", s)
	}
}
