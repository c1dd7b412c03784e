package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leapstack-labs/leapgov/internal/dataset"
	"github.com/leapstack-labs/leapgov/internal/lineage"
	"github.com/leapstack-labs/leapgov/internal/registry"
	"github.com/leapstack-labs/leapgov/internal/rules"
	"github.com/leapstack-labs/leapgov/internal/testutil"
	"github.com/leapstack-labs/leapgov/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
}

// testEngine wires an engine whose outputs all live under a temp dir.
type testEngine struct {
	*Engine
	dir         string
	lineagePath string
}

func newTestEngine(t *testing.T, cfg *core.RuleConfig, mutate ...func(*Config)) *testEngine {
	t.Helper()
	dir := t.TempDir()
	logger := testutil.NewTestLogger(t)
	lineagePath := filepath.Join(dir, "metadata", "lineage.jsonl")

	ids := 0
	c := Config{
		Rules:      cfg,
		Registry:   registry.NewService(registry.NewFileStore(filepath.Join(dir, "metadata", "schema_registry.json")), logger),
		Lineage:    lineage.NewRecorder(lineage.NewFileStore(lineagePath), fixedClock, logger),
		ReportsDir: filepath.Join(dir, "reports"),
		CuratedDir: filepath.Join(dir, "lake", "curated"),
		Clock:      fixedClock,
		NewRunID: func() string {
			ids++
			return fmt.Sprintf("run-%d", ids)
		},
		Logger: logger,
	}
	for _, m := range mutate {
		m(&c)
	}
	e, err := New(c)
	require.NoError(t, err)
	return &testEngine{Engine: e, dir: dir, lineagePath: lineagePath}
}

func loadTestRules(t *testing.T) *core.RuleConfig {
	t.Helper()
	cfg, err := rules.Load(filepath.Join("testdata", "rules.yaml"))
	require.NoError(t, err)
	return cfg
}

func readLineage(t *testing.T, path string) []core.LineageRecord {
	t.Helper()
	records, err := lineage.NewFileStore(path).ReadAll(context.Background())
	require.NoError(t, err)
	return records
}

func TestNew(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorContains(t, err, "requires a rule configuration")

	_, err = New(Config{Rules: &core.RuleConfig{}, Checksum: "crc32"})
	assert.True(t, core.IsConfigError(err))

	e, err := New(Config{Rules: &core.RuleConfig{}})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("reports", "orders_report.json"), e.ReportPath("orders"))
	assert.Equal(t, filepath.Join("lake", "curated", "orders_cleaned.csv"), e.CuratedPath("orders"))
	assert.Equal(t, DefaultParallelism, e.parallelism)
	assert.NotEmpty(t, e.newRunID())
}

func TestRun_Scenario(t *testing.T) {
	// schema {id: int required, email: str}; the second id fails coercion
	cfg := &core.RuleConfig{Datasets: map[string]*core.RuleSet{
		"people": {
			Schema: core.Schema{
				"id":    {Type: core.TypeInt, Required: true},
				"email": {Type: core.TypeString},
			},
			PIIScan: true,
		},
	}}
	te := newTestEngine(t, cfg)

	table, err := dataset.FromRows([]string{"id", "email"}, [][]any{
		{"1", "a@b.com"},
		{"x", "no-match"},
	})
	require.NoError(t, err)

	report, err := te.Run(context.Background(), RunRequest{Dataset: "people", Table: table})
	require.NoError(t, err)

	assert.Contains(t, report.Missing, "id")
	assert.Equal(t, []string{core.PIIEmail}, report.PII["email"])
	assert.NotContains(t, report.PII, "id")
	assert.Equal(t, 2, report.Rows)
	assert.Equal(t, 1, report.CleanedRows)
	assert.Equal(t, "0.0.1", report.Version)
	assert.Equal(t, 0, report.Duplicates, "no id column configured")
	assert.False(t, report.Passed())

	records := readLineage(t, te.lineagePath)
	require.Len(t, records, 1)
	assert.Empty(t, records[0].SourcePath, "in-memory input has no path")
	assert.Len(t, records[0].Checksum, 32)
}

func TestRun_Orders(t *testing.T) {
	te := newTestEngine(t, loadTestRules(t))
	ctx := context.Background()

	report, err := te.Run(ctx, RunRequest{Dataset: "orders"})
	require.NoError(t, err)

	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, "orders", report.Dataset)
	assert.Equal(t, 5, report.Rows)
	assert.Equal(t, []string{"order_id"}, report.Missing)
	assert.Equal(t, []core.Issue{
		{Column: "amount", Kind: core.IssueMinViolation},
		{Column: "amount", Kind: core.IssueMaxViolation},
		{Column: "customer_email", Kind: core.IssueRegex},
		{Column: "order_date", Kind: core.IssueMinViolation},
	}, report.Issues)

	require.Len(t, report.Exprs, 2)
	assert.Equal(t, "country_whitelist", report.Exprs[0].Name)
	assert.False(t, report.Exprs[0].Passed, "UK is not an allowed country")
	assert.Equal(t, "country in allowed_countries", report.Exprs[0].Expr)
	assert.True(t, report.Exprs[1].Passed, report.Exprs[1].Error)

	assert.Equal(t, []string{core.PIIEmail}, report.PII["customer_email"])
	assert.NotContains(t, report.PII, "amount")
	assert.NotContains(t, report.PII, "country")

	assert.Equal(t, 2, report.Duplicates, "both rows with order_id 3 count")
	assert.Equal(t, "0.0.1", report.Version)
	assert.Equal(t, "2024-06-01T09:00:00Z", report.Timestamp)
	assert.Equal(t, 4, report.CleanedRows)

	country := report.Profile["country"]
	assert.Equal(t, core.ColumnProfile{Count: 5, Unique: 3, Top: "IN", Freq: 2, MissingPct: 0}, country)
	assert.Equal(t, 20.0, report.Profile["order_id"].MissingPct)

	// report on disk is plain JSON and matches the returned value
	data, err := os.ReadFile(te.ReportPath("orders"))
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, []any{"amount", "min_violation"}, raw["issues"].([]any)[0])
	assert.Equal(t, "0.0.1", raw["version"])

	onDisk, err := te.ReadReport("orders")
	require.NoError(t, err)
	assert.Equal(t, report, onDisk)

	// curated output drops the row with a missing id and date
	cleaned, err := dataset.ReadCSVFile(te.CuratedPath("orders"), dataset.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 4, cleaned.Len())
	dates, _ := cleaned.Column("order_date")
	assert.Equal(t, "2024-02-01", dates[0])

	records := readLineage(t, te.lineagePath)
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, "run-1", rec.RunID)
	assert.Equal(t, filepath.Join("testdata", "orders.csv"), rec.SourcePath)
	assert.Equal(t, 5, rec.RowCount)
	assert.Equal(t, "0.0.1", rec.Version)
	assert.Equal(t, []string{
		core.StepCoerce, core.StepRequired, core.StepConstraints, core.StepQuality,
		core.StepPIIScan, core.StepRegistry, core.StepDuplicates, core.StepReport, core.StepCurate,
	}, rec.Steps)
	assert.Len(t, rec.Checksum, 32)
}

func TestRun_VersionStableAcrossRuns(t *testing.T) {
	cfg := loadTestRules(t)
	te := newTestEngine(t, cfg)
	ctx := context.Background()

	first, err := te.Run(ctx, RunRequest{Dataset: "orders"})
	require.NoError(t, err)
	second, err := te.Run(ctx, RunRequest{Dataset: "orders"})
	require.NoError(t, err)
	assert.Equal(t, "0.0.1", first.Version)
	assert.Equal(t, "0.0.1", second.Version)

	cfg.Datasets["orders"].Schema["notes"] = core.ColumnSpec{Type: core.TypeString}
	third, err := te.Run(ctx, RunRequest{Dataset: "orders"})
	require.NoError(t, err)
	assert.Equal(t, "0.0.2", third.Version)

	records := readLineage(t, te.lineagePath)
	require.Len(t, records, 3)
	assert.Equal(t, "0.0.2", records[2].Version)
	assert.Equal(t, records[0].Checksum, records[2].Checksum, "same input file")
}

func TestRun_PIIScanDisabled(t *testing.T) {
	cfg := loadTestRules(t)
	cfg.Datasets["orders"].PIIScan = false
	te := newTestEngine(t, cfg)

	report, err := te.Run(context.Background(), RunRequest{Dataset: "orders"})
	require.NoError(t, err)
	assert.Empty(t, report.PII)
	assert.NotNil(t, report.PII)

	records := readLineage(t, te.lineagePath)
	require.Len(t, records, 1)
	assert.NotContains(t, records[0].Steps, core.StepPIIScan)
}

func TestRun_RawStaging(t *testing.T) {
	te := newTestEngine(t, loadTestRules(t), func(c *Config) {
		c.RawDir = filepath.Join(t.TempDir(), "lake", "raw")
		c.Checksum = "sha256"
	})

	_, err := te.Run(context.Background(), RunRequest{Dataset: "customers"})
	require.NoError(t, err)

	records := readLineage(t, te.lineagePath)
	require.Len(t, records, 1)
	assert.Equal(t, "customers.csv", filepath.Base(records[0].SourcePath))
	assert.NotEqual(t, filepath.Join("testdata", "customers.csv"), records[0].SourcePath)
	assert.FileExists(t, records[0].SourcePath)
	assert.Len(t, records[0].Checksum, 64)
}

func TestRun_FatalErrors(t *testing.T) {
	tests := []struct {
		name    string
		req     RunRequest
		mutate  func(c *Config)
		wantErr func(t *testing.T, err error)
	}{
		{
			name: "unknown dataset",
			req:  RunRequest{Dataset: "nope"},
			wantErr: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, core.ErrDatasetNotFound)
				assert.True(t, core.IsConfigError(err))
			},
		},
		{
			name: "unreadable input",
			req:  RunRequest{Dataset: "inventory"},
			wantErr: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, fs.ErrNotExist)
			},
		},
		{
			name: "unwritable reports dir",
			req:  RunRequest{Dataset: "customers"},
			mutate: func(c *Config) {
				blocker := filepath.Join(filepath.Dir(c.ReportsDir), "blocker")
				if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
					panic(err)
				}
				c.ReportsDir = filepath.Join(blocker, "reports")
			},
			wantErr: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "failed to write report")
			},
		},
		{
			name: "cancelled context",
			req:  RunRequest{Dataset: "orders"},
			wantErr: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, context.Canceled)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mutate []func(*Config)
			if tt.mutate != nil {
				mutate = append(mutate, tt.mutate)
			}
			te := newTestEngine(t, loadTestRules(t), mutate...)

			ctx := context.Background()
			if tt.name == "cancelled context" {
				var cancel context.CancelFunc
				ctx, cancel = context.WithCancel(ctx)
				cancel()
			}

			report, err := te.Run(ctx, tt.req)
			require.Error(t, err)
			assert.Nil(t, report)
			tt.wantErr(t, err)

			// nothing persisted
			assert.Empty(t, readLineage(t, te.lineagePath))
			_, statErr := os.Stat(te.CuratedPath(tt.req.Dataset))
			assert.True(t, errors.Is(statErr, fs.ErrNotExist))
		})
	}
}

func TestRunAll(t *testing.T) {
	te := newTestEngine(t, loadTestRules(t), func(c *Config) {
		c.NewRunID = nil
		c.Parallelism = 2
	})

	reports, err := te.RunAll(context.Background(), nil)
	require.Error(t, err, "inventory has no input file")
	assert.ErrorContains(t, err, "dataset inventory")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	require.Len(t, reports, 3)
	// names are sorted: customers, inventory, orders
	require.NotNil(t, reports[0])
	assert.Equal(t, "customers", reports[0].Dataset)
	assert.Nil(t, reports[1])
	require.NotNil(t, reports[2])
	assert.Equal(t, "orders", reports[2].Dataset)
	assert.NotEqual(t, reports[0].RunID, reports[2].RunID)

	records := readLineage(t, te.lineagePath)
	assert.Len(t, records, 2, "one lineage line per successful dataset")

	entries, err := te.Registry().List(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRunAll_Selected(t *testing.T) {
	te := newTestEngine(t, loadTestRules(t))

	reports, err := te.RunAll(context.Background(), []string{"orders", "customers"})
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "orders", reports[0].Dataset)
	assert.Equal(t, "customers", reports[1].Dataset)

	customers := reports[1]
	assert.Equal(t, []core.Issue{{Column: "pan", Kind: core.IssueRegex}}, customers.Issues)
	assert.Equal(t, []string{core.PIIPANLike}, customers.PII["pan"])
	assert.Equal(t, []string{core.PIIPhone}, customers.PII["phone"])
	assert.Equal(t, 1, customers.CleanedRows)
	assert.True(t, customers.Exprs[0].Passed)
}

func TestReadReport_NeverRun(t *testing.T) {
	te := newTestEngine(t, loadTestRules(t))
	_, err := te.ReadReport("orders")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
