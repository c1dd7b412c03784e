package starlark

import (
	"fmt"
	"time"

	"github.com/leapstack-labs/leapgov/pkg/core"
	"github.com/ncruces/go-strftime"
	startime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"
)

// FrameGlobal is the name the dataset is bound to.
const FrameGlobal = "df"

// allowedUniversal lists the Starlark universe builtins an expression may
// call. Everything else in the universe (print, getattr, range...) is
// rejected when the expression is compiled.
var allowedUniversal = map[string]bool{
	"len":    true,
	"abs":    true,
	"min":    true,
	"max":    true,
	"all":    true,
	"any":    true,
	"bool":   true,
	"int":    true,
	"float":  true,
	"str":    true,
	"sorted": true,
	"True":   true,
	"False":  true,
	"None":   true,
}

// extraBuiltins are predeclared alongside the context.
var extraBuiltins = starlark.StringDict{
	"date": starlark.NewBuiltin("date", dateBuiltin),
}

// dateBuiltin parses date(text, format="%Y-%m-%d") into a time value that
// compares with date cells.
func dateBuiltin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var text string
	format := core.DefaultDateFormat
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "text", &text, "format?", &format); err != nil {
		return nil, err
	}
	layout, err := strftime.Layout(format)
	if err != nil {
		return nil, fmt.Errorf("%s: unsupported format %q: %w", b.Name(), format, err)
	}
	t, err := time.Parse(layout, text)
	if err != nil {
		return nil, fmt.Errorf("%s: %q does not match %q", b.Name(), text, format)
	}
	return startime.Time(t), nil
}

// ContextToStarlark converts the rule set context into frozen globals.
func ContextToStarlark(context map[string]any) (starlark.StringDict, error) {
	globals := make(starlark.StringDict, len(context))
	for name, v := range context {
		sv, err := GoToStarlark(v)
		if err != nil {
			return nil, fmt.Errorf("context variable %q: %w", name, err)
		}
		globals[name] = sv
	}
	return globals, nil
}
