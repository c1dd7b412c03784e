package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTest(mode OutputMode, tty bool) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return NewRendererWithTTY(out, errOut, tty, mode), out, errOut
}

func TestMode(t *testing.T) {
	tests := []struct {
		in   string
		want OutputMode
	}{
		{"", ModeAuto},
		{"auto", ModeAuto},
		{"TEXT", ModeText},
		{"md", ModeMarkdown},
		{"markdown", ModeMarkdown},
		{"json", ModeJSON},
		{"yml", ModeYAML},
		{"bogus", ModeAuto},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Mode(tt.in))
		})
	}

	assert.True(t, IsValidMode("yaml"))
	assert.False(t, IsValidMode("xml"))
	assert.Contains(t, ModeNames(), "json")
}

func TestEffectiveMode(t *testing.T) {
	r, _, _ := newTest(ModeAuto, true)
	assert.Equal(t, ModeText, r.EffectiveMode())

	r, _, _ = newTest(ModeAuto, false)
	assert.Equal(t, ModeMarkdown, r.EffectiveMode())

	r, _, _ = newTest(ModeJSON, true)
	assert.Equal(t, ModeJSON, r.EffectiveMode())
}

func TestRenderer_Markdown(t *testing.T) {
	r, out, errOut := newTest(ModeMarkdown, false)

	r.Header(1, "Report")
	r.KeyValue("Rows", 5)
	r.StatusLine("orders", "failed", "3 issues")
	r.Success("done")
	r.Error("boom")

	got := out.String()
	assert.Contains(t, got, "# Report\n")
	assert.Contains(t, got, "- **Rows**: 5")
	assert.Contains(t, got, "- **orders**: failed (3 issues)")
	assert.Contains(t, got, "OK: done")
	assert.Equal(t, "ERROR: boom\n", errOut.String())
	assert.NotContains(t, got, "\x1b[")
}

func TestRenderer_TextWithoutTTYHasNoEscapes(t *testing.T) {
	r, out, _ := newTest(ModeText, false)

	r.Header(1, "Report")
	r.StatusLine("orders", "passed", "")
	r.Table([]string{"column", "count"}, [][]any{{"a", 1}})

	got := out.String()
	assert.Contains(t, got, "Report")
	assert.Contains(t, got, "✓ orders passed")
	assert.Contains(t, got, "│ a")
	assert.NotContains(t, got, "\x1b[")
}

func TestRenderer_MarkdownTable(t *testing.T) {
	r, out, _ := newTest(ModeMarkdown, false)
	r.Table([]string{"column", "count"}, [][]any{{"a", 1}, {"b", 2}})

	got := out.String()
	assert.Contains(t, got, "| column | count |")
	assert.Contains(t, got, "| b | 2 |")
}

func TestRenderer_Structured(t *testing.T) {
	payload := map[string]any{"dataset": "orders", "version": "0.0.1"}

	r, out, _ := newTest(ModeJSON, false)
	ok, err := r.Structured(payload)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"dataset":"orders","version":"0.0.1"}`, out.String())

	r, out, _ = newTest(ModeYAML, false)
	ok, err = r.Structured(payload)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "dataset: orders\nversion: 0.0.1\n", out.String())

	r, out, _ = newTest(ModeMarkdown, false)
	ok, err = r.Structured(payload)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, out.String())
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "## Issues", FormatHeader(2, "Issues"))
	assert.Equal(t, "# Top", FormatHeader(0, "Top"))
	assert.Equal(t, "- **Version**: 0.0.2", FormatKeyValue("Version", "0.0.2"))
	assert.Equal(t, "- none", FormatList(nil))
	assert.Equal(t, "- a\n- b", FormatList([]string{"a", "b"}))
}
