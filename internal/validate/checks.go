package validate

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/leapstack-labs/leapgov/internal/dataset"
	"github.com/leapstack-labs/leapgov/pkg/core"
	"github.com/ncruces/go-strftime"
)

// RequiredChecks returns the required schema columns that are absent or hold
// at least one missing value.
func RequiredChecks(t *dataset.Table, schema core.Schema) []string {
	missing := []string{}
	for _, name := range schema.Columns() {
		if !schema[name].Required {
			continue
		}
		col, ok := t.Column(name)
		if !ok || anyMissing(col) {
			missing = append(missing, name)
		}
	}
	return missing
}

func anyMissing(col []any) bool {
	for _, v := range col {
		if dataset.IsMissing(v) {
			return true
		}
	}
	return false
}

// ConstraintChecks evaluates min, max, allowed and regex constraints for every
// schema column. Each constraint is independent, so a column may report
// several kinds. An absent column yields a single missing_column issue.
func ConstraintChecks(t *dataset.Table, schema core.Schema) []core.Issue {
	issues := []core.Issue{}
	for _, name := range schema.Columns() {
		spec := schema[name]
		col, ok := t.Column(name)
		if !ok {
			issues = append(issues, core.Issue{Column: name, Kind: core.IssueMissingColumn})
			continue
		}

		if spec.Min != nil && anyBeyond(col, spec, spec.Min, -1) {
			issues = append(issues, core.Issue{Column: name, Kind: core.IssueMinViolation})
		}
		if spec.Max != nil && anyBeyond(col, spec, spec.Max, 1) {
			issues = append(issues, core.Issue{Column: name, Kind: core.IssueMaxViolation})
		}
		if spec.Allowed != nil && anyNotAllowed(col, spec) {
			issues = append(issues, core.Issue{Column: name, Kind: core.IssueEnumViolation})
		}
		if spec.Regex != "" && anyRegexMismatch(col, spec) {
			issues = append(issues, core.Issue{Column: name, Kind: core.IssueRegex})
		}
	}
	return issues
}

// anyBeyond reports whether some non-missing value compares to bound with the
// given sign (-1: below, 1: above). Incomparable values are skipped.
func anyBeyond(col []any, spec core.ColumnSpec, bound any, sign int) bool {
	cmp := comparator(spec, bound)
	if cmp == nil {
		return false
	}
	for _, v := range col {
		if dataset.IsMissing(v) {
			continue
		}
		if c, ok := cmp(v); ok && c == sign {
			return true
		}
	}
	return false
}

// comparator returns a function comparing a cell against bound, or nil if the
// bound cannot be interpreted for the column type.
func comparator(spec core.ColumnSpec, bound any) func(v any) (int, bool) {
	if b, ok := numeric(bound); ok {
		return func(v any) (int, bool) {
			f, ok := numeric(v)
			if !ok {
				return 0, false
			}
			return compareFloat(f, b), true
		}
	}

	s, ok := bound.(string)
	if !ok {
		return nil
	}

	if spec.Type == core.TypeDate {
		layout, err := strftime.Layout(spec.DateFormat())
		if err != nil {
			return nil
		}
		bt, err := time.Parse(layout, s)
		if err != nil {
			return nil
		}
		return func(v any) (int, bool) {
			tv, ok := v.(time.Time)
			if !ok {
				return 0, false
			}
			return tv.Compare(bt), true
		}
	}

	return func(v any) (int, bool) {
		sv, ok := v.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(sv, s), true
	}
}

func numeric(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case float64:
		return x, true
	default:
		return 0, false
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// anyNotAllowed reports whether some value is outside the allowed set.
// Missing values are never members of the set.
func anyNotAllowed(col []any, spec core.ColumnSpec) bool {
	meta := dataset.ColumnMeta{Type: spec.Type, Format: spec.DateFormat()}
	allowed := make(map[string]struct{}, len(spec.Allowed))
	for _, a := range spec.Allowed {
		allowed[memberKey(a, meta)] = struct{}{}
	}
	for _, v := range col {
		if dataset.IsMissing(v) {
			return true
		}
		if _, ok := allowed[memberKey(v, meta)]; !ok {
			return true
		}
	}
	return false
}

// memberKey normalises a value so that 1, 1.0 and int64(1) share a key.
func memberKey(v any, meta dataset.ColumnMeta) string {
	if f, ok := numeric(v); ok {
		return fmt.Sprintf("n:%v", f)
	}
	if s, ok := v.(string); ok && meta.Type.IsNumeric() {
		if f, ok := numeric(ToFloat(s)); ok {
			return fmt.Sprintf("n:%v", f)
		}
	}
	return "s:" + dataset.Render(v, meta)
}

// anyRegexMismatch reports whether some non-missing value does not fully match
// the column regex. A regex that does not compile counts as a mismatch.
func anyRegexMismatch(col []any, spec core.ColumnSpec) bool {
	re, err := CompileFullMatch(spec.Regex)
	if err != nil {
		return true
	}
	meta := dataset.ColumnMeta{Type: spec.Type, Format: spec.DateFormat()}
	for _, v := range col {
		if dataset.IsMissing(v) {
			continue
		}
		if !re.MatchString(dataset.Render(v, meta)) {
			return true
		}
	}
	return false
}

// CompileFullMatch compiles a pattern anchored at both ends.
func CompileFullMatch(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return nil, fmt.Errorf("invalid regex %q: %w", pattern, err)
	}
	return re, nil
}
