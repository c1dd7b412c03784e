package core

import (
	"encoding/json"
	"fmt"
	"sort"
)

// =============================================================================
// Validation issues
// =============================================================================

// IssueKind identifies the constraint a column violated.
type IssueKind string

// Issue kinds reported by constraint checks.
const (
	IssueMissingColumn IssueKind = "missing_column"
	IssueMinViolation  IssueKind = "min_violation"
	IssueMaxViolation  IssueKind = "max_violation"
	IssueEnumViolation IssueKind = "enum_violation"
	IssueRegex         IssueKind = "regex_violation"
)

// Issue is a (column, kind) pair. It encodes as a two element JSON array.
type Issue struct {
	Column string
	Kind   IssueKind
}

// MarshalJSON encodes the issue as ["column", "kind"].
func (i Issue) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{i.Column, string(i.Kind)})
}

// UnmarshalJSON decodes ["column", "kind"].
func (i *Issue) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("issue: want [column, kind], got %d elements", len(pair))
	}
	i.Column, i.Kind = pair[0], IssueKind(pair[1])
	return nil
}

// ExprResult is the outcome of one quality check.
type ExprResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Expr   string `json:"expr"`
	Error  string `json:"error,omitempty"`
}

// ValidationResult is produced fresh on every run.
type ValidationResult struct {
	Missing []string     `json:"missing"`
	Issues  []Issue      `json:"issues"`
	Exprs   []ExprResult `json:"exprs"`
}

// =============================================================================
// PII
// =============================================================================

// PII category tags.
const (
	PIIEmail      = "email"
	PIIPhone      = "phone"
	PIIPANLike    = "pan_like"
	PIICreditCard = "credit_card_like"
)

// PIIFindings maps a column name to the sorted set of categories detected in
// it. Columns without findings are absent.
type PIIFindings map[string][]string

// Columns returns the flagged column names in sorted order.
func (f PIIFindings) Columns() []string {
	cols := make([]string, 0, len(f))
	for col := range f {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}
