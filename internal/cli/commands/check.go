package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapgov/internal/rules"
	"github.com/leapstack-labs/leapgov/internal/starlark"
	"github.com/leapstack-labs/leapgov/pkg/core"
	"github.com/spf13/cobra"
)

// CheckProblem is a quality check that does not compile.
type CheckProblem struct {
	Dataset string `json:"dataset"`
	Check   string `json:"check"`
	Error   string `json:"error"`
}

// CheckResult summarises a validated rule file.
type CheckResult struct {
	RulesPath string         `json:"rules_path"`
	Datasets  []DatasetInfo  `json:"datasets"`
	Problems  []CheckProblem `json:"problems"`
}

// DatasetInfo describes one configured dataset.
type DatasetInfo struct {
	Name     string   `json:"name"`
	Columns  []string `json:"columns"`
	IDColumn string   `json:"id_column,omitempty"`
	Checks   int      `json:"checks"`
	PIIScan  bool     `json:"pii_scan"`
	Source   string   `json:"source,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the rule file",
		Long: `Load the rule file and report every configuration problem.

Quality check expressions are compiled against the declared schema, so
misspelled columns and unsupported syntax are caught before any data is read.`,
		Example: `  leapgov check
  leapgov check --rules config/rules.yaml --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContextWithoutEngine(cmd)

			ruleCfg, err := rules.Load(cmdCtx.Cfg.RulesPath)
			if err != nil {
				return err
			}
			result := CheckRules(cmdCtx.Cfg.RulesPath, ruleCfg)

			r := cmdCtx.Renderer
			if ok, err := r.Structured(result); ok {
				if err != nil {
					return err
				}
				return result.err()
			}

			r.Header(1, fmt.Sprintf("Datasets (%d total)", len(result.Datasets)))
			rows := make([][]any, len(result.Datasets))
			for i, d := range result.Datasets {
				rows[i] = []any{d.Name, strings.Join(d.Columns, ", "), d.Checks, d.PIIScan, d.Source}
			}
			r.Table([]string{"Dataset", "Columns", "Checks", "PII Scan", "Source"}, rows)

			for _, p := range result.Problems {
				r.StatusLine(p.Dataset+"."+p.Check, "invalid", p.Error)
			}
			if err := result.err(); err != nil {
				return err
			}
			r.Success("rules are valid: " + cmdCtx.Cfg.RulesPath)
			return nil
		},
	}
}

// CheckRules compiles every quality check of cfg against its schema.
func CheckRules(path string, cfg *core.RuleConfig) *CheckResult {
	result := &CheckResult{RulesPath: path, Datasets: []DatasetInfo{}, Problems: []CheckProblem{}}

	for _, name := range cfg.Names() {
		rs := cfg.Datasets[name]
		result.Datasets = append(result.Datasets, DatasetInfo{
			Name:     name,
			Columns:  rs.Schema.Columns(),
			IDColumn: rs.IDColumn,
			Checks:   len(rs.QualityChecks),
			PIIScan:  rs.PIIScan,
			Source:   rs.Source,
		})

		globals, err := starlark.ContextToStarlark(rs.ExprContext())
		if err != nil {
			result.Problems = append(result.Problems, CheckProblem{Dataset: name, Check: "context", Error: err.Error()})
			continue
		}
		scope := starlark.Scope{Context: globals, Columns: rs.Schema.Columns()}
		for _, c := range rs.QualityChecks {
			if _, err := starlark.Compile(c.Name, c.Expr, scope); err != nil {
				result.Problems = append(result.Problems, CheckProblem{Dataset: name, Check: c.Name, Error: err.Error()})
			}
		}
	}
	return result
}

func (c *CheckResult) err() error {
	if len(c.Problems) == 0 {
		return nil
	}
	return fmt.Errorf("%d quality check(s) do not compile", len(c.Problems))
}
