// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/leapgov/internal/cli/output"
	"gopkg.in/yaml.v3"
)

// Rules is the rule file written by SetupTestProject.
const Rules = `datasets:
  orders:
    source: data/raw/orders.csv
    id_column: order_id
    pii_scan: true
    allowed_countries: [IN, US]
    schema:
      order_id: {type: int, required: true}
      customer_email: {type: str}
      amount: {type: float, min: 0}
      country: {type: str, allowed: [IN, US]}
    quality_checks:
      - name: country_whitelist
        expr: country in @allowed_countries
      - name: positive_amount
        expr: amount > 0
`

// OrdersCSV is the orders input written by SetupTestProject. It has a
// duplicate id, a disallowed country and a missing email.
const OrdersCSV = `order_id,customer_email,amount,country
1,alice@example.com,10.5,IN
2,bob@example.com,20,UK
2,,30,US
`

// SetupTestProject creates a temporary governance project: a leapgov.yaml
// using the file store, the rule file and the orders input.
func SetupTestProject(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()

	files := map[string]string{
		"leapgov.yaml":        "rules_path: config/rules.yaml\nstore:\n  type: file\n",
		"config/rules.yaml":   Rules,
		"data/raw/orders.csv": OrdersCSV,
	}
	for name, content := range files {
		path := filepath.Join(tmpDir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("failed to create directory for %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to create %s: %v", name, err)
		}
	}

	return tmpDir
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.OutputMode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// NewTestRendererMarkdown creates a new test renderer in markdown mode.
func NewTestRendererMarkdown() *TestRenderer {
	return NewTestRenderer(output.ModeMarkdown, false)
}

// NewTestRendererJSON creates a new test renderer in JSON mode.
func NewTestRendererJSON() *TestRenderer {
	return NewTestRenderer(output.ModeJSON, false)
}

// Output returns the combined stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// Reset clears both output buffers.
func (tr *TestRenderer) Reset() {
	tr.Out.Reset()
	tr.ErrOut.Reset()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown performs basic markdown validation.
// It checks for unclosed code fences and basic structure.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	// Check for balanced code fences
	fenceCount := strings.Count(md, "```")
	if fenceCount%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", fenceCount)
	}

	// Check that headers have content
	lines := strings.Split(md, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}

// AssertOutputMode checks that the captured output has the characteristics
// of the given mode. Only text mode on a TTY may carry ANSI styling, and
// structured modes must produce a parseable document.
func AssertOutputMode(t *testing.T, tr *TestRenderer, expectedMode output.OutputMode) {
	t.Helper()

	if expectedMode != output.ModeText {
		AssertNoANSI(t, tr.Output()+tr.ErrorOutput())
	}

	switch expectedMode {
	case output.ModeJSON:
		var v any
		if err := json.Unmarshal(tr.Out.Bytes(), &v); err != nil {
			t.Errorf("output is not valid JSON: %v", err)
		}
	case output.ModeYAML:
		var v any
		if err := yaml.Unmarshal(tr.Out.Bytes(), &v); err != nil {
			t.Errorf("output is not valid YAML: %v", err)
		}
	case output.ModeMarkdown:
		AssertValidMarkdown(t, tr.Output())
	}
}
