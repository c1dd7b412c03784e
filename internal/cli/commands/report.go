package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapgov/internal/cli/output"
	"github.com/leapstack-labs/leapgov/pkg/core"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NewReportCommand creates the report command.
func NewReportCommand() *cobra.Command {
	var showProfile bool

	cmd := &cobra.Command{
		Use:   "report <dataset>",
		Short: "Show the last governance report of a dataset",
		Long: `Show the report written by the most recent run of a dataset.

Use --profile to include the per-column summary.`,
		Example: `  leapgov report orders
  leapgov report orders --profile
  leapgov report orders --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if _, err := cmdCtx.Engine.Rules().Lookup(args[0]); err != nil {
				return err
			}
			rep, err := cmdCtx.Engine.ReadReport(args[0])
			if errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("dataset %s has no report yet, run: leapgov run %s", args[0], args[0])
			}
			if err != nil {
				return err
			}
			if ok, err := cmdCtx.Renderer.Structured(rep); ok {
				return err
			}
			renderReport(cmdCtx.Renderer, rep, showProfile)
			return nil
		},
	}

	cmd.Flags().BoolVar(&showProfile, "profile", false, "Include the column profile")

	return cmd
}

// renderReports writes reports in the renderer's mode. Structured modes
// emit a single document holding every report.
func renderReports(r *output.Renderer, reports []*core.Report, showProfile bool) error {
	if ok, err := r.Structured(reports); ok {
		return err
	}
	for _, rep := range reports {
		renderReport(r, rep, showProfile)
	}
	return nil
}

// label turns a snake_case tag into a display label: "pan_like" -> "Pan Like".
func label(tag string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(tag, "_", " "))
}

func renderReport(r *output.Renderer, rep *core.Report, showProfile bool) {
	status := "passed"
	if !rep.Passed() {
		status = "failed"
	}
	r.Header(2, rep.Dataset)
	r.StatusLine(rep.Dataset, status, fmt.Sprintf("schema %s, run %s", rep.Version, rep.RunID))
	r.KeyValue("Rows", rep.Rows)
	r.KeyValue("Cleaned rows", rep.CleanedRows)
	r.KeyValue("Duplicates", rep.Duplicates)
	r.KeyValue("Timestamp", rep.Timestamp)
	if len(rep.Missing) > 0 {
		r.KeyValue("Missing columns", strings.Join(rep.Missing, ", "))
	}
	r.Println()

	if len(rep.Issues) > 0 {
		rows := make([][]any, len(rep.Issues))
		for i, is := range rep.Issues {
			rows[i] = []any{is.Column, label(string(is.Kind))}
		}
		r.Table([]string{"Column", "Issue"}, rows)
	}

	if len(rep.Exprs) > 0 {
		rows := make([][]any, len(rep.Exprs))
		for i, e := range rep.Exprs {
			result := "passed"
			if !e.Passed {
				result = "failed"
			}
			detail := e.Expr
			if e.Error != "" {
				detail = e.Error
			}
			rows[i] = []any{e.Name, result, detail}
		}
		r.Table([]string{"Check", "Result", "Detail"}, rows)
	}

	if cols := rep.PII.Columns(); len(cols) > 0 {
		rows := make([][]any, len(cols))
		for i, col := range cols {
			cats := make([]string, len(rep.PII[col]))
			for j, c := range rep.PII[col] {
				cats[j] = label(c)
			}
			rows[i] = []any{col, strings.Join(cats, ", ")}
		}
		r.Table([]string{"Column", "PII"}, rows)
	}

	if showProfile && len(rep.Profile) > 0 {
		names := make([]string, 0, len(rep.Profile))
		for name := range rep.Profile {
			names = append(names, name)
		}
		sort.Strings(names)
		rows := make([][]any, len(names))
		for i, name := range names {
			p := rep.Profile[name]
			rows[i] = []any{name, p.Count, p.Unique, p.Top, p.Freq, fmt.Sprintf("%.2f%%", p.MissingPct)}
		}
		r.Table([]string{"Column", "Count", "Unique", "Top", "Freq", "Missing"}, rows)
	}
}
