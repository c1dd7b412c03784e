package commands

import (
	"encoding/json"
	"testing"

	"github.com/leapstack-labs/leapgov/internal/cli/testutil"
	"github.com/leapstack-labs/leapgov/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() *core.Report {
	return &core.Report{
		RunID:   "run-1",
		Dataset: "orders",
		Rows:    3,
		Missing: []string{},
		Issues:  []core.Issue{{Column: "country", Kind: core.IssueEnumViolation}},
		Exprs: []core.ExprResult{
			{Name: "country_whitelist", Passed: false, Expr: "country in allowed_countries"},
			{Name: "positive_amount", Passed: true, Expr: "amount > 0"},
		},
		PII:         core.PIIFindings{"customer_email": {core.PIIEmail}},
		Duplicates:  2,
		Version:     "0.0.1",
		Timestamp:   "2024-06-01T09:00:00Z",
		CleanedRows: 3,
		Profile: map[string]core.ColumnProfile{
			"country": {Count: 3, Unique: 3, Top: "IN", Freq: 1},
		},
	}
}

func TestRenderReport_Markdown(t *testing.T) {
	tr := testutil.NewTestRendererMarkdown()

	renderReport(tr.Renderer, sampleReport(), true)

	out := tr.Output()
	assert.Contains(t, out, "## orders")
	assert.Contains(t, out, "- **orders**: failed (schema 0.0.1, run run-1)")
	assert.Contains(t, out, "Enum Violation")
	assert.Contains(t, out, "country_whitelist")
	assert.Contains(t, out, "| customer_email | Email |")
	assert.Contains(t, out, "0.00%")
	testutil.AssertValidMarkdown(t, out)
	testutil.AssertOutputMode(t, tr, "markdown")
}

func TestRenderReport_ProfileHidden(t *testing.T) {
	tr := testutil.NewTestRendererMarkdown()
	renderReport(tr.Renderer, sampleReport(), true)
	require.Contains(t, tr.Output(), "Unique")

	tr.Reset()
	renderReport(tr.Renderer, sampleReport(), false)

	assert.NotContains(t, tr.Output(), "Unique")
}

func TestRenderReports_JSON(t *testing.T) {
	tr := testutil.NewTestRendererJSON()

	require.NoError(t, renderReports(tr.Renderer, []*core.Report{sampleReport()}, false))

	var got []core.Report
	require.NoError(t, json.Unmarshal(tr.Out.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Duplicates)
	assert.Equal(t, []core.Issue{{Column: "country", Kind: core.IssueEnumViolation}}, got[0].Issues)
	testutil.AssertOutputMode(t, tr, "json")
}

func TestRenderReports_TextWithoutTTY(t *testing.T) {
	tr := testutil.NewTestRenderer("text", false)

	require.NoError(t, renderReports(tr.Renderer, []*core.Report{sampleReport()}, false))

	assert.Contains(t, tr.Output(), "orders")
	testutil.AssertNoANSI(t, tr.Output())
	assert.Empty(t, tr.ErrorOutput())
}
