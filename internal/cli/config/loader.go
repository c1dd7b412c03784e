package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	sharedcfg "github.com/leapstack-labs/leapgov/internal/config"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix of environment variables read as configuration.
// A double underscore separates nested keys: LEAPGOV_STORE__DSN -> store.dsn.
const EnvPrefix = "LEAPGOV_"

// loggerKey is used to store logger in context.
type loggerKey struct{}

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config // Stores the loaded config for access by commands
)

// flagKeys bridges flag names to config keys where they differ.
var flagKeys = map[string]string{
	"rules":     "rules_path",
	"registry":  "registry_path",
	"lineage":   "lineage_path",
	"store":     "store.type",
	"store-dsn": "store.dsn",
}

// pathFlags are flags whose values are paths relative to the working
// directory rather than the project root.
var pathFlags = []string{"rules", "registry", "lineage", "reports-dir", "curated-dir", "raw-dir", "store-dsn"}

// inferProjectRoot determines the project root.
// Priority:
//  1. Explicit --project-dir flag
//  2. Directory of an explicit config file
//  3. Search upward from CWD for leapgov.yaml
//  4. Current working directory
func inferProjectRoot(cfgFile string, flags *pflag.FlagSet) string {
	if flags != nil {
		if projectDir, _ := flags.GetString("project-dir"); projectDir != "" && flags.Changed("project-dir") {
			if abs, err := filepath.Abs(projectDir); err == nil {
				return abs
			}
			return filepath.Clean(projectDir)
		}
	}

	if cfgFile != "" {
		if abs, err := filepath.Abs(cfgFile); err == nil {
			return filepath.Dir(abs)
		}
	}

	cwd, err := os.Getwd()
	if err != nil || cwd == "" {
		return "."
	}
	if root := sharedcfg.FindProjectRoot(cwd); root != "" {
		return root
	}
	return cwd
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

func defaults() map[string]any {
	return map[string]any{
		"rules_path":       DefaultRulesPath,
		"registry_path":    DefaultRegistryPath,
		"lineage_path":     DefaultLineagePath,
		"reports_dir":      DefaultReportsDir,
		"curated_dir":      DefaultCuratedDir,
		"raw_dir":          "",
		"checksum":         DefaultChecksum,
		"pii_sample_limit": DefaultPIISampleLimit,
		"max_steps":        0,
		"parallelism":      DefaultParallelism,
		"store.type":       sharedcfg.StoreFile,
		"store.dsn":        "",
		"server.addr":      sharedcfg.DefaultServerAddr,
		"verbose":          false,
		"log_level":        DefaultLogLevel,
		"output":           DefaultOutput,
	}
}

// envKey maps LEAPGOV_STORE__DSN to store.dsn.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	// Reset koanf for fresh load
	k = koanf.New(".")
	configFileUsed = ""

	projectRoot := inferProjectRoot(cfgFile, flags)

	// 1. Load defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Find and load config file
	if cfgFile == "" {
		cfgFile = sharedcfg.FindConfigFile(projectRoot)
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
		configFileUsed = cfgFile
	}

	// 3. Load environment variables (LEAPGOV_ prefix)
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Load flags (highest priority - overrides env vars and config file)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set
			if !f.Changed || f.Name == "config" || f.Name == "project-dir" {
				return "", nil
			}
			if key, ok := flagKeys[f.Name]; ok {
				return key, posflag.FlagVal(flags, f)
			}
			// Transform kebab-case to snake_case for config keys
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if cfg.Store == nil {
		cfg.Store = &StoreConfig{}
	}
	sharedcfg.ApplyStoreDefaults(cfg.Store)
	cfg.Store.DSN = expandEnvVars(cfg.Store.DSN)

	// 6. Resolve relative paths. Flag values are relative to the working
	// directory, everything else to the project root.
	cfg.ProjectRoot = projectRoot
	fromFlag := changedPaths(flags)
	resolve := func(p *string, flagName string) {
		if abs, ok := fromFlag[flagName]; ok {
			*p = abs
			return
		}
		*p = resolvePathRelativeTo(*p, projectRoot)
	}
	resolve(&cfg.RulesPath, "rules")
	resolve(&cfg.RegistryPath, "registry")
	resolve(&cfg.LineagePath, "lineage")
	resolve(&cfg.ReportsDir, "reports-dir")
	resolve(&cfg.CuratedDir, "curated-dir")
	resolve(&cfg.RawDir, "raw-dir")
	if cfg.Store.Type == sharedcfg.StoreSQLite {
		resolve(&cfg.Store.DSN, "store-dsn")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Store config for access by commands
	currentConfig = &cfg

	return &cfg, nil
}

// changedPaths returns absolute values of the path flags that were set.
func changedPaths(flags *pflag.FlagSet) map[string]string {
	out := map[string]string{}
	if flags == nil {
		return out
	}
	for _, name := range pathFlags {
		f := flags.Lookup(name)
		if f == nil || !f.Changed || f.Value.String() == "" {
			continue
		}
		v := f.Value.String()
		if strings.Contains(v, "://") {
			// a postgres URL, not a path
			continue
		}
		if abs, err := filepath.Abs(v); err == nil {
			out[name] = abs
		}
	}
	return out
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the currently loaded configuration.
// This is available after LoadConfig is called.
func GetCurrentConfig() *Config {
	return currentConfig
}

// NewLogger builds the CLI logger: a text handler on w at the configured
// level, lowered to debug by --verbose.
func NewLogger(cfg *Config, w io.Writer) *slog.Logger {
	level, err := ParseLogLevel(cfg.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// WithLogger returns a context carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // Return original if not found
	})
}
