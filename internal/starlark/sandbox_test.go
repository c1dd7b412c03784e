package starlark

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func TestCompile_Modes(t *testing.T) {
	scope := Scope{
		Context: starlark.StringDict{"limit": starlark.MakeInt(5)},
		Columns: []string{"amount", "country", "len"},
	}

	tests := []struct {
		name      string
		expr      string
		rowMode   bool
		usesFrame bool
		columns   []string
	}{
		{name: "scalar", expr: "limit > 1", columns: []string{}},
		{name: "row", expr: "amount < limit and country != ''", rowMode: true, columns: []string{"amount", "country"}},
		{name: "frame", expr: "df.amount.lt(limit)", usesFrame: true, columns: []string{}},
		{name: "both", expr: "amount <= df.amount.max()", rowMode: true, usesFrame: true, columns: []string{"amount"}},
		{name: "builtin shadows column", expr: "len(df) > 0", usesFrame: true, columns: []string{}},
		{name: "attribute is not a reference", expr: "df.country.notna()", usesFrame: true, columns: []string{}},
		{name: "keyword is not a reference", expr: "date('01/02/2024', format='%d/%m/%Y') != None", columns: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(tt.name, tt.expr, scope)
			require.NoError(t, err)
			assert.Equal(t, tt.rowMode, p.RowMode())
			assert.Equal(t, tt.usesFrame, p.UsesFrame())
			assert.Equal(t, tt.columns, p.Columns())
		})
	}
}

func TestCompile_Rejects(t *testing.T) {
	scope := Scope{Columns: []string{"a"}}

	tests := []struct {
		name string
		expr string
		want string
	}{
		{name: "unknown", expr: "b > 1", want: `name "b" is not defined`},
		{name: "universe builtin", expr: "range(3)", want: `name "range" is not defined`},
		{name: "type builtin", expr: "type(a) == 'int'", want: `name "type" is not defined`},
		{name: "dir", expr: "dir(df)", want: `name "dir" is not defined`},
		{name: "unpacking", expr: "max(*a)", want: "argument unpacking"},
		{name: "kwargs unpacking", expr: "max(**a)", want: "argument unpacking"},
		{name: "nested comprehension", expr: "{k: 1 for k in a}", want: "comprehensions"},
		{name: "empty", expr: "", want: "syntax error"},
		{name: "two statements", expr: "a\nb", want: "syntax error"},
		{name: "reserved", expr: "__compare__(a, '==', 1)", want: "is reserved"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile("check", tt.expr, scope)
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestStripAt(t *testing.T) {
	assert.Equal(t, "country in allowed", StripAt("country in @allowed"))
	assert.Equal(t, "x", StripAt("x"))
}
