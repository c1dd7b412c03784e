// Package starlark evaluates dataset quality checks in a restricted Starlark
// sandbox.
//
// Expressions are parsed once, checked against a small grammar and evaluated
// with only the dataset, the rule set context and a handful of pure builtins
// in scope. There is no load(), no I/O and a hard cap on execution steps.
package starlark

import (
	"fmt"
	"math"
	"time"

	"go.starlark.net/starlark"
	startime "go.starlark.net/lib/time"
)

// GoToStarlark converts a Go value to a Starlark value.
// Supported types: nil, string, bool, int, int64, float64, time.Time,
// []string, []any and map[string]any. Containers are returned frozen.
func GoToStarlark(v any) (starlark.Value, error) {
	sv, err := goToStarlark(v)
	if err != nil {
		return nil, err
	}
	sv.Freeze()
	return sv, nil
}

func goToStarlark(v any) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case string:
		return starlark.String(val), nil

	case bool:
		return starlark.Bool(val), nil

	case int:
		return starlark.MakeInt(val), nil

	case int64:
		return starlark.MakeInt64(val), nil

	case uint64:
		return starlark.MakeUint64(val), nil

	case float64:
		if math.IsNaN(val) {
			return starlark.None, nil
		}
		return starlark.Float(val), nil

	case time.Time:
		return startime.Time(val), nil

	case []string:
		list := make([]starlark.Value, len(val))
		for i, s := range val {
			list[i] = starlark.String(s)
		}
		return starlark.NewList(list), nil

	case []any:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := goToStarlark(item)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			list[i] = sv
		}
		return starlark.NewList(list), nil

	case map[string]any:
		dict := starlark.NewDict(len(val))
		for k, v := range val {
			sv, err := goToStarlark(v)
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", k, err)
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, fmt.Errorf("dict setkey %q: %w", k, err)
			}
		}
		return dict, nil

	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// cellValue converts a table cell. Cells are always one of the scalar kinds
// produced by coercion, so conversion cannot fail.
func cellValue(v any) starlark.Value {
	sv, err := goToStarlark(v)
	if err != nil {
		return starlark.String(fmt.Sprint(v))
	}
	return sv
}

// isNone reports whether v is a missing element.
func isNone(v starlark.Value) bool {
	return v == nil || v == starlark.None
}

// toGo converts a check result back to Go for inspection: scalars map to
// string, int64, float64, bool, time.Time or nil, and series, lists and
// tuples to []any. Anything else is rendered with its String method.
func toGo(v starlark.Value) any {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil
	case starlark.String:
		return string(val)
	case starlark.Int:
		if i64, ok := val.Int64(); ok {
			return i64
		}
		return val.String()
	case starlark.Float:
		return float64(val)
	case starlark.Bool:
		return bool(val)
	case startime.Time:
		return time.Time(val)
	case starlark.Indexable:
		out := make([]any, val.Len())
		for i := range out {
			out[i] = toGo(val.Index(i))
		}
		return out
	default:
		return val.String()
	}
}
