package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/leapstack-labs/leapgov/internal/engine"
	"github.com/leapstack-labs/leapgov/internal/watch"
	"github.com/spf13/cobra"
)

// WatchOptions holds options for the watch command.
type WatchOptions struct {
	Input     string
	Debounce  time.Duration
	NoInitial bool
}

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	opts := &WatchOptions{}

	cmd := &cobra.Command{
		Use:   "watch <dataset>",
		Short: "Re-govern a dataset whenever its input changes",
		Long: `Watch a dataset's input CSV and run the governance pipeline each time
the file is written or replaced. Runs once on start unless --no-initial is set.
Stop with Ctrl+C.`,
		Example: `  # Watch the configured source of the orders dataset
  leapgov watch orders

  # Watch a landing file
  leapgov watch orders --input landing/orders.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Input CSV (default: the dataset's configured source)")
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", watch.DefaultDebounce, "Quiet period before a change triggers a run")
	cmd.Flags().BoolVar(&opts.NoInitial, "no-initial", false, "Wait for the first change instead of running immediately")

	return cmd
}

func runWatch(cmd *cobra.Command, name string, opts *WatchOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	rs, err := cmdCtx.Engine.Rules().Lookup(name)
	if err != nil {
		return err
	}
	input := opts.Input
	if input == "" {
		input = rs.Source
	}
	if input == "" {
		return fmt.Errorf("dataset %q has no source: pass --input", name)
	}
	if input, err = filepath.Abs(input); err != nil {
		return fmt.Errorf("failed to resolve input: %w", err)
	}

	r := cmdCtx.Renderer
	run := func(ctx context.Context) {
		report, err := cmdCtx.Engine.Run(ctx, engine.RunRequest{Dataset: name, SourcePath: input})
		if err != nil {
			r.Error(fmt.Sprintf("%s: %v", name, err))
			return
		}
		status := "passed"
		if !report.Passed() {
			status = "failed"
		}
		r.StatusLine(name, status, fmt.Sprintf("v%s, %d rows, run %s", report.Version, report.Rows, report.RunID))
	}

	ctx := cmd.Context()
	if !opts.NoInitial {
		run(ctx)
	}
	r.Muted(fmt.Sprintf("Watching %s (Ctrl+C to stop)", input))
	return watch.File(ctx, input, opts.Debounce, cmdCtx.Logger, run)
}
