package starlark

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapgov/internal/dataset"
	"github.com/leapstack-labs/leapgov/pkg/core"
	"go.starlark.net/starlark"
)

// Evaluator runs quality checks against a table.
type Evaluator struct {
	// MaxSteps caps each evaluation. Zero means DefaultMaxSteps.
	MaxSteps uint64
	// Parallelism bounds how many checks run at once. Values below 2 run
	// checks sequentially.
	Parallelism int
	Logger      *slog.Logger
}

// EvaluateChecks runs checks with a default Evaluator.
func EvaluateChecks(t *dataset.Table, checks []core.ExprCheck, vars map[string]any) []core.ExprResult {
	return (&Evaluator{}).Evaluate(context.Background(), t, checks, vars)
}

// Evaluate runs every check and returns one result per check in order.
// A check that fails to compile or raises during evaluation is reported as
// failed with the error message; Evaluate itself never fails.
func (e *Evaluator) Evaluate(ctx context.Context, t *dataset.Table, checks []core.ExprCheck, vars map[string]any) []core.ExprResult {
	results := make([]core.ExprResult, len(checks))
	if len(checks) == 0 {
		return results
	}

	logger := e.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	globals, err := ContextToStarlark(vars)
	if err != nil {
		for i, c := range checks {
			results[i] = failed(c, StripAt(c.Expr), err)
		}
		return results
	}

	scope := Scope{Context: globals, Columns: t.Columns()}
	var frame *Frame

	programs := make([]*Program, len(checks))
	for i, c := range checks {
		p, err := Compile(c.Name, c.Expr, scope)
		if err != nil {
			logger.Debug("quality check rejected", "check", c.Name, "error", err)
			results[i] = failed(c, StripAt(c.Expr), err)
			continue
		}
		programs[i] = p
		if p.UsesFrame() && frame == nil {
			frame = NewFrame(t)
		}
	}

	base := make(starlark.StringDict, len(globals)+len(extraBuiltins)+len(rewriteBuiltins)+1)
	for k, v := range globals {
		base[k] = v
	}
	for k, v := range extraBuiltins {
		base[k] = v
	}
	for k, v := range rewriteBuiltins {
		base[k] = v
	}
	if frame != nil {
		base[FrameGlobal] = frame
	}

	runParallel(len(checks), e.Parallelism, func(i int) {
		p := programs[i]
		if p == nil {
			return
		}
		passed, err := e.run(ctx, p, checks[i].Name, t, base)
		if err != nil {
			logger.Debug("quality check raised", "check", checks[i].Name, "error", err)
			results[i] = failed(checks[i], p.Expr, err)
			return
		}
		results[i] = core.ExprResult{Name: checks[i].Name, Passed: passed, Expr: p.Expr}
	})

	return results
}

func failed(c core.ExprCheck, expr string, err error) core.ExprResult {
	return core.ExprResult{Name: c.Name, Passed: false, Expr: expr, Error: err.Error()}
}

func (e *Evaluator) maxSteps() uint64 {
	if e.MaxSteps == 0 {
		return DefaultMaxSteps
	}
	return e.MaxSteps
}

// run evaluates p once, or once per row in row mode. A row-wise check passes
// only if every row passes; an empty table passes vacuously.
func (e *Evaluator) run(ctx context.Context, p *Program, name string, t *dataset.Table, base starlark.StringDict) (bool, error) {
	if !p.RowMode() {
		v, err := e.eval(ctx, p, name, base)
		if err != nil {
			return false, err
		}
		return passes(v), nil
	}

	cols := make([][]any, len(p.columns))
	for j, col := range p.columns {
		cols[j], _ = t.Column(col)
	}

	env := make(starlark.StringDict, len(base)+len(p.columns))
	for k, v := range base {
		env[k] = v
	}
	for row := 0; row < t.Len(); row++ {
		for j, col := range p.columns {
			env[col] = cellValue(cols[j][row])
		}
		v, err := e.eval(ctx, p, name, env)
		if err != nil {
			return false, fmt.Errorf("row %d: %w", row, err)
		}
		if !passes(v) {
			return false, nil
		}
	}
	return true, nil
}

func (e *Evaluator) eval(ctx context.Context, p *Program, name string, env starlark.StringDict) (starlark.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	thread, stop := newThread(ctx, name, e.maxSteps())
	defer stop()

	globals, err := p.prog.Init(thread, env)
	if err != nil {
		if evalErr, ok := err.(*starlark.EvalError); ok {
			return nil, fmt.Errorf("%s", evalErr.Msg)
		}
		return nil, err
	}
	v, ok := globals[resultGlobal]
	if !ok {
		return nil, fmt.Errorf("expression produced no value")
	}
	return v, nil
}

// passes interprets a check result: a series passes when every present
// element is truthy, anything else on its truthiness.
func passes(v starlark.Value) bool {
	if s, ok := v.(*Series); ok {
		for _, e := range s.present() {
			if !e.Truth() {
				return false
			}
		}
		return true
	}
	return bool(v.Truth())
}
