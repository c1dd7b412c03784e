package starlark

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/leapgov/internal/dataset"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Frame exposes a table as the df global. Columns are reachable as df["col"]
// or df.col and yield a *Series.
type Frame struct {
	columns []string
	series  map[string]*Series
	rows    int
}

var (
	_ starlark.Value    = (*Frame)(nil)
	_ starlark.HasAttrs = (*Frame)(nil)
	_ starlark.Mapping  = (*Frame)(nil)
	_ starlark.Sequence = (*Frame)(nil)
)

// NewFrame snapshots a table. The frame is immutable and safe to share
// between threads.
func NewFrame(t *dataset.Table) *Frame {
	f := &Frame{
		columns: t.Columns(),
		series:  make(map[string]*Series, len(t.Columns())),
		rows:    t.Len(),
	}
	for _, name := range f.columns {
		col, _ := t.Column(name)
		values := make([]starlark.Value, len(col))
		for i, v := range col {
			values[i] = cellValue(v)
		}
		f.series[name] = &Series{name: name, values: values}
	}
	return f
}

func (f *Frame) String() string        { return fmt.Sprintf("<frame %d rows x %d columns>", f.rows, len(f.columns)) }
func (f *Frame) Type() string          { return "frame" }
func (f *Frame) Freeze()               {}
func (f *Frame) Truth() starlark.Bool  { return f.rows > 0 }
func (f *Frame) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: frame") }
func (f *Frame) Len() int              { return f.rows }

// Iterate yields the column names, like iterating a pandas DataFrame.
func (f *Frame) Iterate() starlark.Iterator {
	names := make([]starlark.Value, len(f.columns))
	for i, c := range f.columns {
		names[i] = starlark.String(c)
	}
	return starlark.Tuple(names).Iterate()
}

// Get implements df["col"].
func (f *Frame) Get(k starlark.Value) (starlark.Value, bool, error) {
	name, ok := k.(starlark.String)
	if !ok {
		return nil, false, fmt.Errorf("frame index must be a column name, got %s", k.Type())
	}
	s, ok := f.series[string(name)]
	if !ok {
		return nil, false, fmt.Errorf("no column %q", string(name))
	}
	return s, true, nil
}

// Attr implements df.col and df.columns.
func (f *Frame) Attr(name string) (starlark.Value, error) {
	if s, ok := f.series[name]; ok {
		return s, nil
	}
	if name == "columns" {
		names := make([]starlark.Value, len(f.columns))
		for i, c := range f.columns {
			names[i] = starlark.String(c)
		}
		return starlark.Tuple(names), nil
	}
	return nil, nil
}

func (f *Frame) AttrNames() []string {
	names := append([]string{"columns"}, f.columns...)
	sort.Strings(names)
	return names
}

// Series is an immutable column of Starlark values. None marks a missing
// element.
type Series struct {
	name   string
	values []starlark.Value
}

var (
	_ starlark.Value     = (*Series)(nil)
	_ starlark.HasAttrs  = (*Series)(nil)
	_ starlark.Indexable = (*Series)(nil)
	_ starlark.Sequence  = (*Series)(nil)
	_ starlark.HasBinary = (*Series)(nil)
	_ starlark.HasUnary  = (*Series)(nil)
)

func newSeries(name string, values []starlark.Value) *Series {
	return &Series{name: name, values: values}
}

func (s *Series) String() string {
	return fmt.Sprintf("<series %s len=%d>", s.name, len(s.values))
}
func (s *Series) Type() string          { return "series" }
func (s *Series) Freeze()               {}
func (s *Series) Truth() starlark.Bool  { return len(s.values) > 0 }
func (s *Series) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: series") }
func (s *Series) Len() int              { return len(s.values) }
func (s *Series) Index(i int) starlark.Value {
	return s.values[i]
}

func (s *Series) Iterate() starlark.Iterator {
	return starlark.Tuple(s.values).Iterate()
}

// Attr returns a bound series method.
func (s *Series) Attr(name string) (starlark.Value, error) {
	m, ok := seriesMethods[name]
	if !ok {
		return nil, nil
	}
	return m.BindReceiver(s), nil
}

func (s *Series) AttrNames() []string {
	names := make([]string, 0, len(seriesMethods))
	for name := range seriesMethods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Unary implements ~s (logical not) and -s / +s (numeric).
func (s *Series) Unary(op syntax.Token) (starlark.Value, error) {
	out := make([]starlark.Value, len(s.values))
	for i, v := range s.values {
		if isNone(v) {
			out[i] = starlark.None
			continue
		}
		if op == syntax.TILDE {
			out[i] = !v.Truth()
			continue
		}
		r, err := starlark.Unary(op, v)
		if err != nil {
			return nil, fmt.Errorf("series %s[%d]: %w", s.name, i, err)
		}
		out[i] = r
	}
	return newSeries(s.name, out), nil
}

// Binary implements element-wise & | ^ and arithmetic against a scalar or a
// series of the same length, plus membership tests against the series.
func (s *Series) Binary(op syntax.Token, y starlark.Value, side starlark.Side) (starlark.Value, error) {
	if op == syntax.IN || op == syntax.NOT_IN {
		if side != starlark.Right {
			return nil, nil
		}
		found := false
		for _, v := range s.values {
			if eq, err := starlark.Equal(v, y); err == nil && eq {
				found = true
				break
			}
		}
		return starlark.Bool(found == (op == syntax.IN)), nil
	}

	other, isSeries := y.(*Series)
	if isSeries && len(other.values) != len(s.values) {
		return nil, fmt.Errorf("series length mismatch: %d vs %d", len(s.values), len(other.values))
	}

	out := make([]starlark.Value, len(s.values))
	for i, a := range s.values {
		b := y
		if isSeries {
			b = other.values[i]
		}
		l, r := a, b
		if side == starlark.Right {
			l, r = b, a
		}

		switch op {
		case syntax.AMP:
			out[i] = starlark.Bool(truthy(l) && truthy(r))
			continue
		case syntax.PIPE:
			out[i] = starlark.Bool(truthy(l) || truthy(r))
			continue
		case syntax.CIRCUMFLEX:
			out[i] = starlark.Bool(truthy(l) != truthy(r))
			continue
		}

		if isNone(l) || isNone(r) {
			out[i] = starlark.None
			continue
		}
		v, err := starlark.Binary(op, l, r)
		if err != nil {
			return nil, fmt.Errorf("series %s[%d]: %w", s.name, i, err)
		}
		out[i] = v
	}
	return newSeries(s.name, out), nil
}

// truthy treats missing elements as false.
func truthy(v starlark.Value) bool {
	return !isNone(v) && bool(v.Truth())
}
