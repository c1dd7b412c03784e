// Package cli provides the command-line interface for leapgov.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/leapstack-labs/leapgov/internal/cli/commands"
	"github.com/leapstack-labs/leapgov/internal/cli/config"
	"github.com/leapstack-labs/leapgov/internal/cli/output"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.Config
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// configKey is used to store config in context.
type configKey struct{}

// rendererKey is used to store renderer in context.
type rendererKey struct{}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "leapgov",
		Short: "leapgov - Rule-driven data governance for CSV datasets",
		Long: `leapgov governs CSV datasets against declarative rules.

Each run coerces the data to a declared schema, validates required columns
and constraints, evaluates quality checks, scans for PII, versions the schema,
and writes a report, a curated copy of the data and a lineage record.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			var err error
			cfg, err = config.LoadConfig(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			logger := config.NewLogger(cfg, cmd.ErrOrStderr())
			ctx := config.WithLogger(cmd.Context(), logger)
			ctx = context.WithValue(ctx, configKey{}, cfg)

			// Create and store renderer based on output mode
			mode := output.Mode(cfg.OutputFormat)
			renderer := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)
			ctx = context.WithValue(ctx, rendererKey{}, renderer)
			cmd.SetContext(ctx)

			if configFile := config.GetConfigFileUsed(); configFile != "" {
				logger.Debug("using config file", "path", configFile, "project_root", cfg.ProjectRoot)
			}

			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set version template
	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Rule-driven data governance for CSV datasets
`)

	// Global persistent flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./leapgov.yaml)")
	flags.String("project-dir", "", "Project root (default: directory of leapgov.yaml)")
	flags.String("rules", "", "Path to the rule file")
	flags.String("registry", "", "Path to the schema registry file")
	flags.String("lineage", "", "Path to the lineage log")
	flags.String("reports-dir", "", "Directory for reports")
	flags.String("curated-dir", "", "Directory for curated datasets")
	flags.String("raw-dir", "", "Directory to stage raw inputs in (empty to read in place)")
	flags.String("checksum", "", "Input checksum algorithm (md5|sha256|xxh3)")
	flags.String("store", "", "Registry and lineage store (file|sqlite|postgres)")
	flags.String("store-dsn", "", "Database path or URL for SQL stores")
	flags.BoolP("verbose", "v", false, "Verbose output")
	flags.String("log-level", "", "Log level (debug|info|warn|error)")
	flags.StringP("output", "o", "", "Output format (auto|text|markdown|json|yaml)")

	// Register completions
	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return output.ModeNames(), cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("store", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"file", "sqlite", "postgres"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("checksum", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"md5", "sha256", "xxh3"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})

	// Add subcommands
	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(commands.NewReportCommand())
	rootCmd.AddCommand(commands.NewCheckCommand())
	rootCmd.AddCommand(commands.NewHistoryCommand())
	rootCmd.AddCommand(commands.NewRegistryCommand())
	rootCmd.AddCommand(commands.NewWatchCommand())
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command with ctx, which is cancelled on interrupt by
// the caller.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// GetConfig retrieves the config from the command context.
func GetConfig(ctx context.Context) *config.Config {
	if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return c
	}
	// Return default config if none in context
	return config.Default()
}

// GetRenderer retrieves the renderer from the command context.
func GetRenderer(ctx context.Context) *output.Renderer {
	if r, ok := ctx.Value(rendererKey{}).(*output.Renderer); ok {
		return r
	}
	// Return default renderer if none in context
	return output.NewRenderer(os.Stdout, os.Stderr, output.ModeAuto)
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for leapgov.

To load completions:

Bash:
  $ source <(leapgov completion bash)
  
  # To load completions for each session, execute once:
  # Linux:
  $ leapgov completion bash > /etc/bash_completion.d/leapgov
  # macOS:
  $ leapgov completion bash > $(brew --prefix)/etc/bash_completion.d/leapgov

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc
  
  # To load completions for each session, execute once:
  $ leapgov completion zsh > "${fpath[1]}/_leapgov"
  
  # You will need to start a new shell for this setup to take effect.

Fish:
  $ leapgov completion fish | source
  
  # To load completions for each session, execute once:
  $ leapgov completion fish > ~/.config/fish/completions/leapgov.fish

PowerShell:
  PS> leapgov completion powershell | Out-String | Invoke-Expression
  
  # To load completions for every new session, run:
  PS> leapgov completion powershell > leapgov.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(cmd.OutOrStdout())
			case "zsh":
				return cmd.Root().GenZshCompletion(cmd.OutOrStdout())
			case "fish":
				return cmd.Root().GenFishCompletion(cmd.OutOrStdout(), true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
			}
			return nil
		},
	}
	return cmd
}
