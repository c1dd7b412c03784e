package commands

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/leapgov/internal/engine"
	"github.com/leapstack-labs/leapgov/pkg/core"
	"github.com/spf13/cobra"
)

// ErrChecksFailed is returned by --strict runs when a report did not pass.
var ErrChecksFailed = errors.New("governance checks failed")

// RunOptions holds options for the run command.
type RunOptions struct {
	Input  string
	All    bool
	Strict bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run [dataset...]",
		Short: "Govern one or more datasets",
		Long: `Run the governance pipeline for the named datasets.

Each run coerces the input to the declared schema, checks required columns
and constraints, evaluates quality checks, scans for PII, versions the schema,
counts duplicates and writes the report, the curated dataset and a lineage
record. Validation findings never fail the command unless --strict is set.`,
		Example: `  # Govern the orders dataset from its configured source
  leapgov run orders

  # Govern a specific file
  leapgov run orders --input data/raw/orders_2024-06.csv

  # Govern every configured dataset and fail CI on findings
  leapgov run --all --strict --output json`,
		Args: func(_ *cobra.Command, args []string) error {
			if opts.All && len(args) > 0 {
				return fmt.Errorf("--all cannot be combined with dataset names")
			}
			if !opts.All && len(args) == 0 {
				return fmt.Errorf("specify at least one dataset or use --all")
			}
			if opts.Input != "" && len(args) != 1 {
				return fmt.Errorf("--input requires exactly one dataset")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Input CSV (default: the dataset's configured source)")
	cmd.Flags().BoolVar(&opts.All, "all", false, "Govern every configured dataset")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "Exit with an error when any report has findings")

	return cmd
}

func runRun(cmd *cobra.Command, args []string, opts *RunOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	eng := cmdCtx.Engine

	var (
		reports []*core.Report
		runErr  error
	)
	if opts.Input != "" {
		var rep *core.Report
		rep, runErr = eng.Run(ctx, engine.RunRequest{Dataset: args[0], SourcePath: opts.Input})
		reports = []*core.Report{rep}
	} else {
		reports, runErr = eng.RunAll(ctx, args)
	}

	completed := make([]*core.Report, 0, len(reports))
	for _, rep := range reports {
		if rep != nil {
			completed = append(completed, rep)
		}
	}

	if err := renderReports(cmdCtx.Renderer, completed, false); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}

	if opts.Strict {
		failed := 0
		for _, rep := range completed {
			if !rep.Passed() {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%w: %d of %d datasets", ErrChecksFailed, failed, len(completed))
		}
	}
	return nil
}
