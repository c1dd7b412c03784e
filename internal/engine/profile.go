package engine

import (
	"fmt"
	"math"

	"github.com/leapstack-labs/leapgov/internal/dataset"
	"github.com/leapstack-labs/leapgov/pkg/core"
)

// missingKey groups missing IDs together, matching how duplicate detection
// treats absent keys as equal.
const missingKey = "\x00missing"

func cellKey(t *dataset.Table, column string, v any) string {
	if dataset.IsMissing(v) {
		return missingKey
	}
	return fmt.Sprintf("%T:%s", v, t.Render(column, v))
}

// CountDuplicates returns the number of rows whose idColumn value occurs more
// than once. Every occurrence of a repeated key counts, not only the extras.
// An empty or absent idColumn yields 0.
func CountDuplicates(t *dataset.Table, idColumn string) int {
	if idColumn == "" {
		return 0
	}
	col, ok := t.Column(idColumn)
	if !ok {
		return 0
	}

	counts := make(map[string]int, len(col))
	for _, v := range col {
		counts[cellKey(t, idColumn, v)]++
	}
	dups := 0
	for _, n := range counts {
		if n > 1 {
			dups += n
		}
	}
	return dups
}

// Profile summarises every column of t: non-missing count, distinct values,
// the most frequent value and its frequency, and the share of missing cells
// as a percentage rounded to two decimals.
func Profile(t *dataset.Table) map[string]core.ColumnProfile {
	out := make(map[string]core.ColumnProfile, len(t.Columns()))
	for _, name := range t.Columns() {
		col, _ := t.Column(name)

		var (
			p      core.ColumnProfile
			counts = map[string]int{}
			order  []string
		)
		for _, v := range col {
			if dataset.IsMissing(v) {
				continue
			}
			p.Count++
			text := t.Render(name, v)
			if counts[text] == 0 {
				order = append(order, text)
			}
			counts[text]++
		}
		p.Unique = len(counts)
		// ties go to the value seen first
		for _, text := range order {
			if counts[text] > p.Freq {
				p.Top, p.Freq = text, counts[text]
			}
		}
		if n := len(col); n > 0 {
			pct := float64(n-p.Count) / float64(n) * 100
			p.MissingPct = math.Round(pct*100) / 100
		}
		out[name] = p
	}
	return out
}
