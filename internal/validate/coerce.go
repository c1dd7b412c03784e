// Package validate implements schema-driven type coercion and the column
// constraint checks of a governance run.
package validate

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/leapgov/internal/dataset"
	"github.com/leapstack-labs/leapgov/pkg/core"
	"github.com/ncruces/go-strftime"
)

// Coerce returns a copy of t with every schema column cast to its declared
// type. Values that cannot be converted become missing; Coerce never fails.
// Schema columns absent from t are added fully missing. Columns not in the
// schema pass through untouched.
func Coerce(t *dataset.Table, schema core.Schema) *dataset.Table {
	out := t.Clone()
	for _, name := range schema.Columns() {
		spec := schema[name]
		raw, ok := out.Column(name)
		if !ok {
			raw = make([]any, out.Len())
		}

		meta := dataset.ColumnMeta{Type: spec.Type}
		if meta.Type == "" {
			meta.Type = core.TypeString
		}
		if meta.Type == core.TypeDate {
			meta.Format = spec.DateFormat()
		}

		values := make([]any, len(raw))
		switch meta.Type {
		case core.TypeInt:
			for i, v := range raw {
				values[i] = ToInt(v)
			}
		case core.TypeFloat:
			for i, v := range raw {
				values[i] = ToFloat(v)
			}
		case core.TypeDate:
			layout, err := strftime.Layout(meta.Format)
			for i, v := range raw {
				if err != nil {
					continue
				}
				values[i] = ToDate(v, layout)
			}
		default:
			for i, v := range raw {
				values[i] = ToString(v)
			}
		}
		out.SetTypedColumn(name, values, meta)
	}
	return out
}

// ToInt converts a cell to int64. Integral floats are accepted; anything else
// yields nil.
func ToInt(v any) any {
	switch x := v.(type) {
	case int64:
		return x
	case int:
		return int64(x)
	case float64:
		return floatToInt(x)
	case string:
		s := strings.TrimSpace(x)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return floatToInt(f)
		}
		return nil
	default:
		return nil
	}
}

func floatToInt(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return nil
	}
	return int64(f)
}

// ToFloat converts a cell to float64. NaN and unparsable values yield nil.
func ToFloat(v any) any {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case int64:
		f = float64(x)
	case int:
		f = float64(x)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) {
		return nil
	}
	return f
}

// ToDate parses a cell with a Go time layout. Unparsable values yield nil.
func ToDate(v any, layout string) any {
	switch x := v.(type) {
	case time.Time:
		return x
	case string:
		t, err := time.Parse(layout, strings.TrimSpace(x))
		if err != nil {
			return nil
		}
		return t
	default:
		return nil
	}
}

// ToString keeps text verbatim; other non-missing cells are rendered.
func ToString(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return x
	default:
		if dataset.IsMissing(x) {
			return nil
		}
		return dataset.Render(x, dataset.ColumnMeta{})
	}
}
