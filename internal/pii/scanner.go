// Package pii flags dataset columns whose values look like personal data.
//
// Detection is heuristic and pattern based. Only the first SampleLimit values
// of each column are inspected.
package pii

import (
	"regexp"
	"sort"

	"github.com/leapstack-labs/leapgov/internal/dataset"
	"github.com/leapstack-labs/leapgov/pkg/core"
)

// DefaultSampleLimit is the number of leading values scanned per column.
const DefaultSampleLimit = 1000

type pattern struct {
	category string
	re       *regexp.Regexp
}

// patterns are applied in this order; a value may match several.
var patterns = []pattern{
	{core.PIIEmail, regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{core.PIIPhone, regexp.MustCompile(`\+?\d[\d\-\s]{7,}\d`)},
	{core.PIIPANLike, regexp.MustCompile(`\b[A-Z]{5}\d{4}[A-Z]\b`)},
	{core.PIICreditCard, regexp.MustCompile(`\b(?:\d[ -]*?){13,16}\b`)},
}

// Scanner detects PII categories in table columns.
type Scanner struct {
	// SampleLimit caps the values scanned per column. Zero or negative
	// means DefaultSampleLimit.
	SampleLimit int
}

// New returns a scanner with the given sample limit.
func New(sampleLimit int) *Scanner {
	return &Scanner{SampleLimit: sampleLimit}
}

func (s *Scanner) limit() int {
	if s == nil || s.SampleLimit <= 0 {
		return DefaultSampleLimit
	}
	return s.SampleLimit
}

// ScanValue returns the categories matched by a single value.
func ScanValue(v string) []string {
	var hits []string
	if v == "" {
		return hits
	}
	for _, p := range patterns {
		if p.re.MatchString(v) {
			hits = append(hits, p.category)
		}
	}
	return hits
}

// Scan inspects every column of t and returns the columns with at least one
// detected category. Values are rendered as text in their column's type;
// missing values never match.
func (s *Scanner) Scan(t *dataset.Table) core.PIIFindings {
	findings := core.PIIFindings{}
	limit := s.limit()

	for _, name := range t.Columns() {
		col, _ := t.Column(name)
		if len(col) > limit {
			col = col[:limit]
		}

		flags := map[string]bool{}
		for _, v := range col {
			if dataset.IsMissing(v) {
				continue
			}
			for _, category := range ScanValue(t.Render(name, v)) {
				flags[category] = true
			}
			if len(flags) == len(patterns) {
				break
			}
		}
		if len(flags) == 0 {
			continue
		}

		categories := make([]string, 0, len(flags))
		for c := range flags {
			categories = append(categories, c)
		}
		sort.Strings(categories)
		findings[name] = categories
	}
	return findings
}
