package starlark

import (
	"fmt"
	"sort"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// resultGlobal receives the value of the compiled expression.
const resultGlobal = "__check_result__"

// Scope names everything an expression may reference besides the allowed
// builtins.
type Scope struct {
	Context starlark.StringDict
	Columns []string
}

// Program is a quality check expression that passed the grammar check and was
// compiled once. It is safe for concurrent use.
type Program struct {
	// Expr is the expression as evaluated, with any @ prefixes removed.
	Expr string

	prog      *starlark.Program
	columns   []string
	usesFrame bool
}

// RowMode reports whether the expression references bare column names and
// must be evaluated once per row.
func (p *Program) RowMode() bool { return len(p.columns) > 0 }

// UsesFrame reports whether the expression references df.
func (p *Program) UsesFrame() bool { return p.usesFrame }

// Columns returns the bare column names the expression references, sorted.
func (p *Program) Columns() []string { return p.columns }

// StripAt removes pandas-style @ variable prefixes.
func StripAt(expr string) string {
	return strings.ReplaceAll(expr, "@", "")
}

// Compile parses expr, checks it against the restricted grammar and compiles
// it. name labels the expression in error positions.
func Compile(name, expr string, scope Scope) (*Program, error) {
	src := StripAt(expr)
	opts := &syntax.FileOptions{}

	e, err := opts.ParseExpr(name, src, 0)
	if err != nil {
		return nil, fmt.Errorf("syntax error: %w", err)
	}

	c := newChecker(scope)
	if err := c.expr(e); err != nil {
		return nil, err
	}

	f, err := opts.Parse(name, resultGlobal+" = (\n"+src+"\n)\n", 0)
	if err != nil {
		return nil, fmt.Errorf("syntax error: %w", err)
	}
	if len(f.Stmts) != 1 {
		return nil, fmt.Errorf("expected a single expression")
	}
	assign, ok := f.Stmts[0].(*syntax.AssignStmt)
	if !ok {
		return nil, fmt.Errorf("expected a single expression")
	}
	rw := &rewriter{comparisons: c.usesFrame}
	assign.RHS = rw.expr(assign.RHS)

	prog, err := starlark.FileProgram(f, c.isPredeclared)
	if err != nil {
		return nil, fmt.Errorf("compile error: %w", err)
	}

	columns := make([]string, 0, len(c.columns))
	for col := range c.columns {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	return &Program{
		Expr:      src,
		prog:      prog,
		columns:   columns,
		usesFrame: c.usesFrame,
	}, nil
}

// checker walks a parsed expression and rejects anything outside the
// supported grammar: comparisons, boolean and arithmetic operators,
// membership tests, literals, indexing, attribute access and calls to
// methods or allowed builtins.
type checker struct {
	scope     Scope
	known     map[string]bool
	columns   map[string]bool
	usesFrame bool
}

func newChecker(scope Scope) *checker {
	known := make(map[string]bool, len(scope.Columns))
	for _, col := range scope.Columns {
		known[col] = true
	}
	return &checker{scope: scope, known: known, columns: map[string]bool{}}
}

func (c *checker) isPredeclared(name string) bool {
	if _, ok := c.scope.Context[name]; ok {
		return true
	}
	if _, ok := extraBuiltins[name]; ok {
		return true
	}
	if _, ok := rewriteBuiltins[name]; ok {
		return true
	}
	return name == FrameGlobal || c.columns[name]
}

func (c *checker) ident(id *syntax.Ident) error {
	name := id.Name
	if _, ok := rewriteBuiltins[name]; ok {
		return c.errorf(id, "name %q is reserved", name)
	}
	if _, ok := c.scope.Context[name]; ok {
		return nil
	}
	if name == FrameGlobal {
		c.usesFrame = true
		return nil
	}
	if _, ok := extraBuiltins[name]; ok {
		return nil
	}
	if allowedUniversal[name] {
		return nil
	}
	if c.known[name] {
		c.columns[name] = true
		return nil
	}
	return c.errorf(id, "name %q is not defined", name)
}

func (c *checker) errorf(n syntax.Node, format string, args ...any) error {
	start, _ := n.Span()
	return fmt.Errorf("%s: %s", start, fmt.Sprintf(format, args...))
}

func (c *checker) exprs(list []syntax.Expr) error {
	for _, e := range list {
		if err := c.expr(e); err != nil {
			return err
		}
	}
	return nil
}

func (c *checker) expr(e syntax.Expr) error {
	switch e := e.(type) {
	case *syntax.Ident:
		return c.ident(e)

	case *syntax.Literal:
		return nil

	case *syntax.ParenExpr:
		return c.expr(e.X)

	case *syntax.UnaryExpr:
		if e.X == nil {
			return c.errorf(e, "unsupported unary operator %s", e.Op)
		}
		return c.expr(e.X)

	case *syntax.BinaryExpr:
		if err := c.expr(e.X); err != nil {
			return err
		}
		return c.expr(e.Y)

	case *syntax.CondExpr:
		return c.exprs([]syntax.Expr{e.Cond, e.True, e.False})

	case *syntax.IndexExpr:
		if err := c.expr(e.X); err != nil {
			return err
		}
		return c.expr(e.Y)

	case *syntax.SliceExpr:
		if err := c.expr(e.X); err != nil {
			return err
		}
		for _, part := range []syntax.Expr{e.Lo, e.Hi, e.Step} {
			if part == nil {
				continue
			}
			if err := c.expr(part); err != nil {
				return err
			}
		}
		return nil

	case *syntax.DotExpr:
		// e.Name is an attribute, not a reference
		return c.expr(e.X)

	case *syntax.CallExpr:
		switch fn := e.Fn.(type) {
		case *syntax.Ident:
			if err := c.ident(fn); err != nil {
				return err
			}
		case *syntax.DotExpr:
			if err := c.expr(fn); err != nil {
				return err
			}
		default:
			return c.errorf(e, "only builtins and methods may be called")
		}
		for _, arg := range e.Args {
			if kw, ok := arg.(*syntax.BinaryExpr); ok && kw.Op == syntax.EQ {
				if err := c.expr(kw.Y); err != nil {
					return err
				}
				continue
			}
			if u, ok := arg.(*syntax.UnaryExpr); ok && (u.Op == syntax.STAR || u.Op == syntax.STARSTAR) {
				return c.errorf(arg, "argument unpacking is not supported")
			}
			if err := c.expr(arg); err != nil {
				return err
			}
		}
		return nil

	case *syntax.ListExpr:
		return c.exprs(e.List)

	case *syntax.TupleExpr:
		return c.exprs(e.List)

	case *syntax.DictExpr:
		for _, item := range e.List {
			entry, ok := item.(*syntax.DictEntry)
			if !ok {
				return c.errorf(item, "malformed dict literal")
			}
			if err := c.exprs([]syntax.Expr{entry.Key, entry.Value}); err != nil {
				return err
			}
		}
		return nil

	case *syntax.LambdaExpr:
		return c.errorf(e, "lambda expressions are not allowed")

	case *syntax.Comprehension:
		return c.errorf(e, "comprehensions are not allowed")

	default:
		return c.errorf(e, "unsupported expression %T", e)
	}
}
