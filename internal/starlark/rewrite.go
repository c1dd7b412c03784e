package starlark

import (
	"fmt"
	"strconv"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// MaxRepeat caps the length of a string, bytes, list or tuple built with *.
const MaxRepeat = 1 << 20

// Hidden builtins the compiled expression calls in place of some operators.
// Expressions cannot name them directly: the grammar check rejects them.
const (
	compareGlobal = "__compare__"
	repeatGlobal  = "__repeat__"
)

var rewriteBuiltins = starlark.StringDict{
	compareGlobal: starlark.NewBuiltin(compareGlobal, compareBuiltin),
	repeatGlobal:  starlark.NewBuiltin(repeatGlobal, repeatBuiltin),
}

var comparisonOps = map[string]syntax.Token{
	syntax.EQL.String(): syntax.EQL,
	syntax.NEQ.String(): syntax.NEQ,
	syntax.LT.String():  syntax.LT,
	syntax.LE.String():  syntax.LE,
	syntax.GT.String():  syntax.GT,
	syntax.GE.String():  syntax.GE,
}

// mirrored gives op with its operands swapped: a < b is b > a.
func mirrored(op syntax.Token) syntax.Token {
	switch op {
	case syntax.LT:
		return syntax.GT
	case syntax.GT:
		return syntax.LT
	case syntax.LE:
		return syntax.GE
	case syntax.GE:
		return syntax.LE
	default:
		return op
	}
}

// compareBuiltin implements __compare__(x, op, y). A series on either side
// compares element-wise; scalars compare as Starlark would.
func compareBuiltin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		x, y   starlark.Value
		opName string
	)
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 3, &x, &opName, &y); err != nil {
		return nil, err
	}
	op, ok := comparisonOps[opName]
	if !ok {
		return nil, fmt.Errorf("unknown comparison %q", opName)
	}

	if s, ok := x.(*Series); ok {
		return s.compare(op, y)
	}
	if s, ok := y.(*Series); ok {
		return s.compare(mirrored(op), x)
	}
	res, err := starlark.Compare(op, x, y)
	if err != nil {
		return nil, err
	}
	return starlark.Bool(res), nil
}

// repeatBuiltin implements __repeat__(x, y), the * operator with a bound on
// sequence repetition.
func repeatBuiltin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var x, y starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &x, &y); err != nil {
		return nil, err
	}
	if err := checkRepeat(x, y); err != nil {
		return nil, err
	}
	if err := checkRepeat(y, x); err != nil {
		return nil, err
	}
	return starlark.Binary(syntax.STAR, x, y)
}

func checkRepeat(seq, count starlark.Value) error {
	var size int
	switch v := seq.(type) {
	case starlark.String:
		size = len(v)
	case starlark.Bytes:
		size = len(v)
	case *starlark.List:
		size = v.Len()
	case starlark.Tuple:
		size = v.Len()
	default:
		return nil
	}
	n, ok := count.(starlark.Int)
	if !ok {
		return nil
	}
	times, ok := n.Int64()
	if !ok || (size > 0 && times > int64(MaxRepeat/size)) || (size == 0 && times > MaxRepeat) {
		return fmt.Errorf("repetition of %s exceeds %d elements", seq.Type(), MaxRepeat)
	}
	return nil
}

// rewriter replaces operators that Starlark would evaluate natively with
// calls to the hidden builtins. Comparisons are rewritten only when the
// expression may produce a series.
type rewriter struct {
	comparisons bool
}

func (rw *rewriter) call(fn string, pos syntax.Position, end syntax.Position, args ...syntax.Expr) *syntax.CallExpr {
	return &syntax.CallExpr{
		Fn:     &syntax.Ident{NamePos: pos, Name: fn},
		Lparen: pos,
		Args:   args,
		Rparen: end,
	}
}

func (rw *rewriter) exprs(list []syntax.Expr) {
	for i, e := range list {
		list[i] = rw.expr(e)
	}
}

func (rw *rewriter) expr(e syntax.Expr) syntax.Expr {
	switch e := e.(type) {
	case *syntax.ParenExpr:
		e.X = rw.expr(e.X)

	case *syntax.UnaryExpr:
		if e.X != nil {
			e.X = rw.expr(e.X)
		}

	case *syntax.BinaryExpr:
		e.X = rw.expr(e.X)
		e.Y = rw.expr(e.Y)
		start, _ := e.X.Span()
		_, end := e.Y.Span()
		if _, ok := comparisonOps[e.Op.String()]; ok && rw.comparisons {
			op := &syntax.Literal{
				Token:    syntax.STRING,
				TokenPos: e.OpPos,
				Raw:      strconv.Quote(e.Op.String()),
				Value:    e.Op.String(),
			}
			return rw.call(compareGlobal, start, end, e.X, op, e.Y)
		}
		if e.Op == syntax.STAR {
			return rw.call(repeatGlobal, start, end, e.X, e.Y)
		}

	case *syntax.CondExpr:
		e.Cond = rw.expr(e.Cond)
		e.True = rw.expr(e.True)
		e.False = rw.expr(e.False)

	case *syntax.IndexExpr:
		e.X = rw.expr(e.X)
		e.Y = rw.expr(e.Y)

	case *syntax.SliceExpr:
		e.X = rw.expr(e.X)
		if e.Lo != nil {
			e.Lo = rw.expr(e.Lo)
		}
		if e.Hi != nil {
			e.Hi = rw.expr(e.Hi)
		}
		if e.Step != nil {
			e.Step = rw.expr(e.Step)
		}

	case *syntax.DotExpr:
		e.X = rw.expr(e.X)

	case *syntax.CallExpr:
		e.Fn = rw.expr(e.Fn)
		for i, arg := range e.Args {
			// keyword arguments keep their name
			if kw, ok := arg.(*syntax.BinaryExpr); ok && kw.Op == syntax.EQ {
				kw.Y = rw.expr(kw.Y)
				continue
			}
			e.Args[i] = rw.expr(arg)
		}

	case *syntax.ListExpr:
		rw.exprs(e.List)

	case *syntax.TupleExpr:
		rw.exprs(e.List)

	case *syntax.DictExpr:
		for _, item := range e.List {
			entry := item.(*syntax.DictEntry)
			entry.Key = rw.expr(entry.Key)
			entry.Value = rw.expr(entry.Value)
		}
	}
	return e
}
