// Package dataset provides the in-memory tabular dataset the governance
// pipeline operates on, plus CSV reading and writing.
//
// Cells hold one of: nil (missing), string, int64, float64 or time.Time.
// Float NaN is never stored; coercion maps it to nil.
package dataset

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/leapstack-labs/leapgov/pkg/core"
	"github.com/ncruces/go-strftime"
)

// ColumnMeta records the declared type of a coerced column.
// Raw (uncoerced) columns have no meta and hold strings or nil.
type ColumnMeta struct {
	Type   core.ColumnType
	Format string // strftime format for date columns
}

// Table is an ordered set of equally long named columns.
type Table struct {
	columns []string
	data    map[string][]any
	meta    map[string]ColumnMeta
	rows    int
}

// New creates an empty table with the given number of rows.
func New(rows int) *Table {
	return &Table{
		data: make(map[string][]any),
		meta: make(map[string]ColumnMeta),
		rows: rows,
	}
}

// FromRows builds a table of raw values from a header and row-major records.
// Short records are padded with missing values.
func FromRows(header []string, records [][]any) (*Table, error) {
	t := New(len(records))
	seen := make(map[string]bool, len(header))
	for _, name := range header {
		if seen[name] {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		seen[name] = true
	}
	for c, name := range header {
		col := make([]any, len(records))
		for r, rec := range records {
			if c < len(rec) {
				col[r] = rec[c]
			}
		}
		t.SetColumn(name, col)
	}
	return t, nil
}

// Len returns the number of rows.
func (t *Table) Len() int { return t.rows }

// Columns returns column names in table order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// HasColumn reports whether the table has a column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.data[name]
	return ok
}

// Column returns the values of a column. The returned slice must not be
// modified.
func (t *Table) Column(name string) ([]any, bool) {
	col, ok := t.data[name]
	return col, ok
}

// Meta returns the type metadata of a column.
func (t *Table) Meta(name string) (ColumnMeta, bool) {
	m, ok := t.meta[name]
	return m, ok
}

// SetColumn replaces or appends a column. values must have Len() elements.
func (t *Table) SetColumn(name string, values []any) {
	if len(values) != t.rows {
		panic(fmt.Sprintf("dataset: column %q has %d values, table has %d rows", name, len(values), t.rows))
	}
	if _, ok := t.data[name]; !ok {
		t.columns = append(t.columns, name)
	}
	t.data[name] = values
}

// SetTypedColumn replaces or appends a column and records its type.
func (t *Table) SetTypedColumn(name string, values []any, meta ColumnMeta) {
	t.SetColumn(name, values)
	t.meta[name] = meta
}

// Value returns the cell at row i of a column, nil if the column is absent.
func (t *Table) Value(name string, i int) any {
	col, ok := t.data[name]
	if !ok {
		return nil
	}
	return col[i]
}

// Row returns row i as a map of column name to value.
func (t *Table) Row(i int) map[string]any {
	row := make(map[string]any, len(t.columns))
	for _, name := range t.columns {
		row[name] = t.data[name][i]
	}
	return row
}

// Clone returns a copy whose columns can be replaced without affecting t.
// Cell values are immutable and shared.
func (t *Table) Clone() *Table {
	out := New(t.rows)
	for _, name := range t.columns {
		col := make([]any, t.rows)
		copy(col, t.data[name])
		out.SetColumn(name, col)
		if m, ok := t.meta[name]; ok {
			out.meta[name] = m
		}
	}
	return out
}

// Filter returns a new table with the rows for which keep returns true.
func (t *Table) Filter(keep func(i int) bool) *Table {
	var idx []int
	for i := 0; i < t.rows; i++ {
		if keep(i) {
			idx = append(idx, i)
		}
	}
	out := New(len(idx))
	for _, name := range t.columns {
		src := t.data[name]
		col := make([]any, len(idx))
		for j, i := range idx {
			col[j] = src[i]
		}
		out.SetColumn(name, col)
		if m, ok := t.meta[name]; ok {
			out.meta[name] = m
		}
	}
	return out
}

// DropMissing returns the rows that have no missing value in any of the given
// columns. Columns absent from the table are ignored.
func (t *Table) DropMissing(columns []string) *Table {
	return t.Filter(func(i int) bool {
		for _, name := range columns {
			col, ok := t.data[name]
			if ok && IsMissing(col[i]) {
				return false
			}
		}
		return true
	})
}

// IsMissing reports whether a cell is a missing value.
func IsMissing(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x)
	default:
		return false
	}
}

// Render formats a cell as text: dates use the column's strftime format,
// missing values render as the empty string.
func (t *Table) Render(name string, v any) string {
	return Render(v, t.meta[name])
}

// Render formats a cell as text using the given column meta.
func Render(v any, meta ColumnMeta) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		if math.IsNaN(x) {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		format := meta.Format
		if format == "" {
			format = core.DefaultDateFormat
		}
		return strftime.Format(format, x)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// JSONValue converts a cell into a plain JSON-safe value: nil, int64,
// float64 or string. Dates become strings in the column format.
func JSONValue(v any, meta ColumnMeta) any {
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	case int64, string, bool:
		return x
	default:
		return Render(v, meta)
	}
}
