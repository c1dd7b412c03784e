package rules

import (
	"fmt"
	"time"

	"github.com/leapstack-labs/leapgov/internal/validate"
	"github.com/leapstack-labs/leapgov/pkg/core"
	"github.com/ncruces/go-strftime"
)

// buildColumn converts a decoded column into a ColumnSpec, normalising bound
// and allowed values to the column type.
func buildColumn(rc *rawColumn) (core.ColumnSpec, []string) {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	typ, err := core.ParseColumnType(rc.Type)
	if err != nil {
		addf("%v", err)
		typ = core.TypeString
	}

	spec := core.ColumnSpec{
		Type:     typ,
		Required: rc.Required,
		Format:   rc.Format,
		Regex:    rc.Regex,
	}

	var layout string
	if typ == core.TypeDate {
		layout, err = strftime.Layout(spec.DateFormat())
		if err != nil {
			addf("unsupported date format %q: %v", spec.DateFormat(), err)
		}
	} else if rc.Format != "" {
		addf("format is only valid for date columns")
	}

	normBound := func(key string, v any) any {
		if v == nil {
			return nil
		}
		out, err := normalizeValue(typ, layout, v)
		if err != nil {
			addf("%s: %v", key, err)
			return nil
		}
		return out
	}
	spec.Min = normBound("min", rc.Min)
	spec.Max = normBound("max", rc.Max)
	if typ == core.TypeString {
		// plain strings are compared lexicographically; numbers would silently never match
		if _, ok := rc.Min.(string); rc.Min != nil && !ok {
			addf("min must be a string for str columns")
		}
		if _, ok := rc.Max.(string); rc.Max != nil && !ok {
			addf("max must be a string for str columns")
		}
	}
	if spec.Min != nil && spec.Max != nil && boundsInverted(typ, layout, spec.Min, spec.Max) {
		addf("min %v is greater than max %v", spec.Min, spec.Max)
	}

	if rc.Allowed != nil {
		spec.Allowed = make([]any, 0, len(rc.Allowed))
		for i, v := range rc.Allowed {
			if v == nil {
				addf("allowed[%d] is null", i)
				continue
			}
			out, err := normalizeAllowed(typ, layout, v)
			if err != nil {
				addf("allowed[%d]: %v", i, err)
				continue
			}
			spec.Allowed = append(spec.Allowed, out)
		}
	}

	if rc.Regex != "" {
		if _, err := validate.CompileFullMatch(rc.Regex); err != nil {
			addf("%v", err)
		}
	}

	return spec, problems
}

// normalizeValue converts a bound: numbers to float64 for numeric columns,
// date strings validated against the layout, strings kept as-is.
func normalizeValue(typ core.ColumnType, layout string, v any) (any, error) {
	switch typ {
	case core.TypeInt, core.TypeFloat:
		f, ok := asFloat(v)
		if !ok {
			return nil, fmt.Errorf("want a number, got %T %v", v, v)
		}
		return f, nil
	case core.TypeDate:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("want a date string, got %T %v", v, v)
		}
		if layout != "" {
			if _, err := time.Parse(layout, s); err != nil {
				return nil, fmt.Errorf("%q does not match the column date format", s)
			}
		}
		return s, nil
	default:
		s, ok := v.(string)
		if !ok {
			return fmt.Sprint(v), nil
		}
		return s, nil
	}
}

// normalizeAllowed is normalizeValue, except str columns accept scalars of
// any type rendered as text.
func normalizeAllowed(typ core.ColumnType, layout string, v any) (any, error) {
	switch v.(type) {
	case map[string]any, []any:
		return nil, fmt.Errorf("want a scalar, got %T", v)
	}
	return normalizeValue(typ, layout, v)
}

func boundsInverted(typ core.ColumnType, layout string, lo, hi any) bool {
	switch typ {
	case core.TypeInt, core.TypeFloat:
		a, _ := lo.(float64)
		b, _ := hi.(float64)
		return a > b
	case core.TypeDate:
		a, errA := time.Parse(layout, fmt.Sprint(lo))
		b, errB := time.Parse(layout, fmt.Sprint(hi))
		return errA == nil && errB == nil && a.After(b)
	default:
		return fmt.Sprint(lo) > fmt.Sprint(hi)
	}
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float64:
		return x, true
	case float32:
		return float64(x), true
	default:
		return 0, false
	}
}
