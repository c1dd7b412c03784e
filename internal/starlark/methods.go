package starlark

import (
	"fmt"

	"github.com/leapstack-labs/leapgov/internal/validate"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// seriesMethods are the vectorised operations available on a column. Each
// returns a new series or a scalar; none mutates the receiver.
var seriesMethods = map[string]*starlark.Builtin{
	"isin":      starlark.NewBuiltin("isin", seriesIsIn),
	"notna":     starlark.NewBuiltin("notna", seriesNotNA),
	"isna":      starlark.NewBuiltin("isna", seriesIsNA),
	"fillna":    starlark.NewBuiltin("fillna", seriesFillNA),
	"between":   starlark.NewBuiltin("between", seriesBetween),
	"eq":        starlark.NewBuiltin("eq", compareMethod(syntax.EQL)),
	"ne":        starlark.NewBuiltin("ne", compareMethod(syntax.NEQ)),
	"lt":        starlark.NewBuiltin("lt", compareMethod(syntax.LT)),
	"le":        starlark.NewBuiltin("le", compareMethod(syntax.LE)),
	"gt":        starlark.NewBuiltin("gt", compareMethod(syntax.GT)),
	"ge":        starlark.NewBuiltin("ge", compareMethod(syntax.GE)),
	"all":       starlark.NewBuiltin("all", seriesAll),
	"any":       starlark.NewBuiltin("any", seriesAny),
	"count":     starlark.NewBuiltin("count", seriesCount),
	"min":       starlark.NewBuiltin("min", extremum(syntax.LT)),
	"max":       starlark.NewBuiltin("max", extremum(syntax.GT)),
	"sum":       starlark.NewBuiltin("sum", seriesSum),
	"mean":      starlark.NewBuiltin("mean", seriesMean),
	"nunique":   starlark.NewBuiltin("nunique", seriesNUnique),
	"unique":    starlark.NewBuiltin("unique", seriesUnique),
	"str_match": starlark.NewBuiltin("str_match", seriesStrMatch),
}

type builtinFunc = func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error)

func receiver(b *starlark.Builtin) *Series {
	return b.Receiver().(*Series)
}

// mapBool builds a boolean series from a per-element predicate.
func (s *Series) mapBool(fn func(v starlark.Value) (bool, error)) (*Series, error) {
	out := make([]starlark.Value, len(s.values))
	for i, v := range s.values {
		ok, err := fn(v)
		if err != nil {
			return nil, fmt.Errorf("series %s[%d]: %w", s.name, i, err)
		}
		out[i] = starlark.Bool(ok)
	}
	return newSeries(s.name, out), nil
}

func (s *Series) present() []starlark.Value {
	out := make([]starlark.Value, 0, len(s.values))
	for _, v := range s.values {
		if !isNone(v) {
			out = append(out, v)
		}
	}
	return out
}

func seriesIsIn(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var values starlark.Iterable
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &values); err != nil {
		return nil, err
	}
	var members []starlark.Value
	iter := values.Iterate()
	defer iter.Done()
	var x starlark.Value
	for iter.Next(&x) {
		members = append(members, x)
	}

	return receiver(b).mapBool(func(v starlark.Value) (bool, error) {
		if isNone(v) {
			return false, nil
		}
		for _, m := range members {
			if eq, err := starlark.Equal(v, m); err == nil && eq {
				return true, nil
			}
		}
		return false, nil
	})
}

func seriesNotNA(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	return receiver(b).mapBool(func(v starlark.Value) (bool, error) { return !isNone(v), nil })
}

func seriesIsNA(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	return receiver(b).mapBool(func(v starlark.Value) (bool, error) { return isNone(v), nil })
}

func seriesFillNA(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var fill starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &fill); err != nil {
		return nil, err
	}
	s := receiver(b)
	out := make([]starlark.Value, len(s.values))
	for i, v := range s.values {
		if isNone(v) {
			out[i] = fill
		} else {
			out[i] = v
		}
	}
	return newSeries(s.name, out), nil
}

func seriesBetween(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var lo, hi starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &lo, &hi); err != nil {
		return nil, err
	}
	return receiver(b).mapBool(func(v starlark.Value) (bool, error) {
		if isNone(v) {
			return false, nil
		}
		above, err := starlark.Compare(syntax.GE, v, lo)
		if err != nil || !above {
			return false, err
		}
		return starlark.Compare(syntax.LE, v, hi)
	})
}

// compareMethod returns eq/ne/lt/le/gt/ge. The operand is a scalar or a
// series of equal length.
func compareMethod(op syntax.Token) builtinFunc {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var other starlark.Value
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &other); err != nil {
			return nil, err
		}
		out, err := receiver(b).compare(op, other)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		return out, nil
	}
}

// compare applies op element-wise against a scalar or a series of equal
// length. Missing elements compare false, except for !=.
func (s *Series) compare(op syntax.Token, other starlark.Value) (*Series, error) {
	os, isSeries := other.(*Series)
	if isSeries && len(os.values) != len(s.values) {
		return nil, fmt.Errorf("series length mismatch: %d vs %d", len(s.values), len(os.values))
	}

	out := make([]starlark.Value, len(s.values))
	for i, v := range s.values {
		y := other
		if isSeries {
			y = os.values[i]
		}
		if isNone(v) || isNone(y) {
			out[i] = starlark.Bool(op == syntax.NEQ)
			continue
		}
		ok, err := starlark.Compare(op, v, y)
		if err != nil {
			return nil, fmt.Errorf("series %s[%d]: %w", s.name, i, err)
		}
		out[i] = starlark.Bool(ok)
	}
	return newSeries(s.name, out), nil
}

func seriesAll(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	for _, v := range receiver(b).present() {
		if !v.Truth() {
			return starlark.False, nil
		}
	}
	return starlark.True, nil
}

func seriesAny(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	for _, v := range receiver(b).present() {
		if v.Truth() {
			return starlark.True, nil
		}
	}
	return starlark.False, nil
}

func seriesCount(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	return starlark.MakeInt(len(receiver(b).present())), nil
}

// extremum returns min (LT) or max (GT) over the present elements; None when
// every element is missing.
func extremum(op syntax.Token) builtinFunc {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
			return nil, err
		}
		var best starlark.Value = starlark.None
		for _, v := range receiver(b).present() {
			if isNone(best) {
				best = v
				continue
			}
			better, err := starlark.Compare(op, v, best)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", b.Name(), err)
			}
			if better {
				best = v
			}
		}
		return best, nil
	}
}

func sumPresent(name string, values []starlark.Value) (starlark.Value, error) {
	var total starlark.Value = starlark.MakeInt(0)
	for _, v := range values {
		next, err := starlark.Binary(syntax.PLUS, total, v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		total = next
	}
	return total, nil
}

func seriesSum(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	return sumPresent(b.Name(), receiver(b).present())
}

func seriesMean(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	values := receiver(b).present()
	if len(values) == 0 {
		return starlark.None, nil
	}
	total, err := sumPresent(b.Name(), values)
	if err != nil {
		return nil, err
	}
	f, ok := starlark.AsFloat(total)
	if !ok {
		return nil, fmt.Errorf("%s: non-numeric series", b.Name())
	}
	return starlark.Float(f / float64(len(values))), nil
}

// distinct returns the present elements in first-seen order without repeats.
func (s *Series) distinct() ([]starlark.Value, error) {
	seen := starlark.NewDict(len(s.values))
	var out []starlark.Value
	for _, v := range s.present() {
		_, found, err := seen.Get(v)
		if err != nil {
			return nil, err
		}
		if found {
			continue
		}
		if err := seen.SetKey(v, starlark.None); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func seriesNUnique(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	values, err := receiver(b).distinct()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return starlark.MakeInt(len(values)), nil
}

func seriesUnique(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	values, err := receiver(b).distinct()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return starlark.Tuple(values), nil
}

// seriesStrMatch full-matches each element's text against a regex. Missing
// elements do not match.
func seriesStrMatch(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var pattern string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &pattern); err != nil {
		return nil, err
	}
	re, err := validate.CompileFullMatch(pattern)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return receiver(b).mapBool(func(v starlark.Value) (bool, error) {
		if isNone(v) {
			return false, nil
		}
		if s, ok := v.(starlark.String); ok {
			return re.MatchString(string(s)), nil
		}
		return re.MatchString(v.String()), nil
	})
}
