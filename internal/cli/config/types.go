// Package config provides configuration management for the leapgov CLI.
//
// Settings are layered with koanf. Defaults are overridden by the project
// config file (leapgov.yaml), then by LEAPGOV_* environment variables, then
// by flags that were set explicitly on the command line. The shared store and
// server types live in internal/config and are aliased here.
package config

import (
	sharedcfg "github.com/leapstack-labs/leapgov/internal/config"
)

// StoreConfig is an alias for the shared store configuration.
type StoreConfig = sharedcfg.StoreConfig

// ServerConfig is an alias for the shared HTTP server configuration.
type ServerConfig = sharedcfg.ServerConfig

// Config holds all CLI configuration options.
type Config struct {
	// ProjectRoot anchors relative paths. It is inferred, never loaded.
	ProjectRoot string `koanf:"-"`

	RulesPath    string `koanf:"rules_path"`
	RegistryPath string `koanf:"registry_path"`
	LineagePath  string `koanf:"lineage_path"`
	ReportsDir   string `koanf:"reports_dir"`
	CuratedDir   string `koanf:"curated_dir"`
	RawDir       string `koanf:"raw_dir"`

	Checksum       string `koanf:"checksum"`
	PIISampleLimit int    `koanf:"pii_sample_limit"`
	MaxSteps       uint64 `koanf:"max_steps"`
	Parallelism    int    `koanf:"parallelism"`

	Store  *StoreConfig  `koanf:"store"`
	Server *ServerConfig `koanf:"server"`

	Verbose      bool   `koanf:"verbose"`
	LogLevel     string `koanf:"log_level"`
	OutputFormat string `koanf:"output"`
}

// GetServerConfig returns the server config with defaults applied for any
// unset values.
func (c *Config) GetServerConfig() *ServerConfig {
	srv := c.Server
	if srv == nil {
		srv = &ServerConfig{}
	}
	sharedcfg.ApplyServerDefaults(srv)
	return srv
}

// Default configuration values - uses shared defaults from internal/config
const (
	DefaultRulesPath    = sharedcfg.DefaultRulesPath
	DefaultRegistryPath = sharedcfg.DefaultRegistryPath
	DefaultLineagePath  = sharedcfg.DefaultLineagePath
	DefaultReportsDir   = sharedcfg.DefaultReportsDir
	DefaultCuratedDir   = sharedcfg.DefaultCuratedDir
	DefaultChecksum     = sharedcfg.DefaultChecksum
	DefaultLogLevel     = "info"
	DefaultOutput       = "auto" // Auto-detect: TTY=text, non-TTY=markdown

	DefaultPIISampleLimit = 1000
	DefaultParallelism    = 4
)

// Default returns a configuration holding only default values, with paths
// relative to the working directory.
func Default() *Config {
	return &Config{
		RulesPath:      DefaultRulesPath,
		RegistryPath:   DefaultRegistryPath,
		LineagePath:    DefaultLineagePath,
		ReportsDir:     DefaultReportsDir,
		CuratedDir:     DefaultCuratedDir,
		Checksum:       DefaultChecksum,
		PIISampleLimit: DefaultPIISampleLimit,
		Parallelism:    DefaultParallelism,
		Store:          &StoreConfig{Type: sharedcfg.StoreFile},
		LogLevel:       DefaultLogLevel,
		OutputFormat:   DefaultOutput,
	}
}
