package commands

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/leapstack-labs/leapgov/internal/cli/config"
	"github.com/leapstack-labs/leapgov/internal/cli/output"
	"github.com/leapstack-labs/leapgov/internal/engine"
	"github.com/leapstack-labs/leapgov/internal/fileutil"
	"github.com/leapstack-labs/leapgov/internal/lineage"
	"github.com/leapstack-labs/leapgov/internal/pii"
	"github.com/leapstack-labs/leapgov/internal/registry"
	"github.com/leapstack-labs/leapgov/internal/rules"
	"github.com/leapstack-labs/leapgov/internal/starlark"
	"github.com/leapstack-labs/leapgov/internal/state"
	"github.com/leapstack-labs/leapgov/pkg/core"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Engine   *engine.Engine
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with engine and renderer.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	eng, cleanup, err := CreateEngine(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Engine:   eng,
		Renderer: newRenderer(cmd, cfg),
	}, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without an engine.
// Useful for commands that only inspect the rule file.
func NewCommandContextWithoutEngine(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: newRenderer(cmd, cfg),
	}
}

func newRenderer(cmd *cobra.Command, cfg *config.Config) *output.Renderer {
	return output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))
}

// getConfig returns the loaded configuration, or defaults when the root
// command did not load one (commands executed directly in tests).
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return config.Default()
}

// stores holds the registry and lineage backends selected by store.type.
type stores struct {
	schemas core.SchemaStore
	lineage core.LineageStore
	closer  func()
}

// openStores opens the configured backend. The file backend keeps the
// registry and lineage in separate files; SQL backends share one database.
func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	if !cfg.Store.IsSQL() {
		return &stores{
			schemas: registry.NewFileStore(cfg.RegistryPath),
			lineage: lineage.NewFileStore(cfg.LineagePath),
			closer:  func() {},
		}, nil
	}

	dialect, err := cfg.Store.Dialect()
	if err != nil {
		return nil, err
	}
	st, err := state.Open(ctx, dialect, cfg.Store.DSN, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", dialect, err)
	}
	return &stores{
		schemas: st,
		lineage: st,
		closer:  func() { _ = st.Close() },
	}, nil
}

// resolveSources anchors relative dataset sources at the project root.
func resolveSources(ruleCfg *core.RuleConfig, root string) {
	if root == "" {
		return
	}
	for _, rs := range ruleCfg.Datasets {
		if rs.Source != "" && !filepath.IsAbs(rs.Source) {
			rs.Source = filepath.Join(root, rs.Source)
		}
	}
}

// CreateEngine builds an engine from the configuration: it loads the rule
// file, opens the stores and applies the evaluation limits. The returned
// cleanup closes the stores.
func CreateEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*engine.Engine, func(), error) {
	ruleCfg, err := rules.Load(cfg.RulesPath)
	if err != nil {
		return nil, nil, err
	}
	resolveSources(ruleCfg, cfg.ProjectRoot)

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	eng, err := engine.New(engine.Config{
		Rules:    ruleCfg,
		Registry: registry.NewService(st.schemas, logger),
		Lineage:  lineage.NewRecorder(st.lineage, fileutil.SystemClock, logger),
		Evaluator: &starlark.Evaluator{
			MaxSteps:    cfg.MaxSteps,
			Parallelism: cfg.Parallelism,
			Logger:      logger,
		},
		Scanner:     pii.New(cfg.PIISampleLimit),
		ReportsDir:  cfg.ReportsDir,
		CuratedDir:  cfg.CuratedDir,
		RawDir:      cfg.RawDir,
		Checksum:    cfg.Checksum,
		Parallelism: cfg.Parallelism,
		Logger:      logger,
	})
	if err != nil {
		st.closer()
		return nil, nil, err
	}
	return eng, st.closer, nil
}
