package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sharedcfg "github.com/leapstack-labs/leapgov/internal/config"
	"github.com/leapstack-labs/leapgov/internal/engine"
	"github.com/leapstack-labs/leapgov/internal/lineage"
	"github.com/leapstack-labs/leapgov/internal/notifier"
	"github.com/leapstack-labs/leapgov/internal/registry"
	"github.com/leapstack-labs/leapgov/internal/rules"
	"github.com/leapstack-labs/leapgov/internal/state"
	"github.com/leapstack-labs/leapgov/internal/testutil"
	"github.com/leapstack-labs/leapgov/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRules = `
datasets:
  orders:
    id_column: order_id
    pii_scan: true
    allowed_countries: [IN, US]
    schema:
      order_id: {type: int, required: true}
      customer_email: {type: str}
      country: {type: str, allowed: [IN, US]}
    quality_checks:
      - name: country_whitelist
        expr: country in @allowed_countries
`

const ordersCSV = "order_id,customer_email,country\n1,a@example.com,IN\n2,b@example.com,UK\n2,,US\n"

func fixedClock() time.Time {
	return time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
}

func newTestServer(t *testing.T, schemas core.SchemaStore) *Server {
	t.Helper()
	dir := t.TempDir()
	logger := testutil.NewTestLogger(t)

	cfg, err := rules.Parse([]byte(testRules), "test")
	require.NoError(t, err)

	if schemas == nil {
		schemas = registry.NewFileStore(filepath.Join(dir, "schema_registry.json"))
	}
	ids := 0
	eng, err := engine.New(engine.Config{
		Rules:      cfg,
		Registry:   registry.NewService(schemas, logger),
		Lineage:    lineage.NewRecorder(lineage.NewFileStore(filepath.Join(dir, "lineage.jsonl")), fixedClock, logger),
		ReportsDir: filepath.Join(dir, "reports"),
		CuratedDir: filepath.Join(dir, "curated"),
		Clock:      fixedClock,
		NewRunID: func() string {
			ids++
			return fmt.Sprintf("run-%d", ids)
		},
		Logger: logger,
	})
	require.NoError(t, err)

	return New(Config{Engine: eng, Logger: logger})
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	rec := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListDatasets(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	rec := do(t, h, http.MethodGet, "/v1/datasets", "")
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[[]datasetInfo](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, "orders", got[0].Name)
	assert.Equal(t, []string{"country", "customer_email", "order_id"}, got[0].Columns)
	assert.Equal(t, 1, got[0].Checks)
}

func TestRunDataset(t *testing.T) {
	s := newTestServer(t, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/v1/datasets/orders/runs?source=upload.csv", ordersCSV)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	report := decode[core.Report](t, rec)
	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, 3, report.Rows)
	assert.Equal(t, "0.0.1", report.Version)
	assert.Equal(t, 2, report.Duplicates)
	assert.Equal(t, []core.Issue{{Column: "country", Kind: core.IssueEnumViolation}}, report.Issues)
	require.Len(t, report.Exprs, 1)
	assert.False(t, report.Exprs[0].Passed)
	assert.Equal(t, []string{core.PIIEmail}, report.PII["customer_email"])

	// The written report is served back unchanged
	rec = do(t, h, http.MethodGet, "/v1/datasets/orders/report", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, report, decode[core.Report](t, rec))

	rec = do(t, h, http.MethodGet, "/v1/lineage?dataset=orders&limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	records := decode[[]core.LineageRecord](t, rec)
	require.Len(t, records, 1)
	assert.Equal(t, "upload.csv", records[0].SourcePath)
	assert.Equal(t, "run-1", records[0].RunID)
	assert.Equal(t, 3, records[0].RowCount)

	rec = do(t, h, http.MethodGet, "/v1/registry", "")
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[map[string]core.RegistryEntry](t, rec)
	assert.Equal(t, "0.0.1", entries["orders"].Version)

	rec = do(t, h, http.MethodGet, "/v1/registry/orders", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0.0.1", decode[core.RegistryEntry](t, rec).Version)
}

func TestErrors(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		wantStatus int
		wantError  string
	}{
		{name: "run unknown dataset", method: http.MethodPost, target: "/v1/datasets/nope/runs", body: ordersCSV, wantStatus: http.StatusNotFound, wantError: `dataset "nope" not found`},
		{name: "malformed csv", method: http.MethodPost, target: "/v1/datasets/orders/runs", body: "a,b\n1,2,3\n", wantStatus: http.StatusBadRequest, wantError: "invalid CSV body"},
		{name: "report before any run", method: http.MethodGet, target: "/v1/datasets/orders/report", wantStatus: http.StatusNotFound, wantError: "failed to read report"},
		{name: "report unknown dataset", method: http.MethodGet, target: "/v1/datasets/nope/report", wantStatus: http.StatusNotFound},
		{name: "bad limit", method: http.MethodGet, target: "/v1/lineage?limit=x", wantStatus: http.StatusBadRequest, wantError: "invalid limit"},
		{name: "unregistered dataset", method: http.MethodGet, target: "/v1/registry/orders", wantStatus: http.StatusNotFound, wantError: "not registered"},
		{name: "history on file store", method: http.MethodGet, target: "/v1/registry/orders/history", wantStatus: http.StatusNotImplemented},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			body := decode[errorBody](t, rec)
			assert.NotEmpty(t, body.Error)
			if tt.wantError != "" {
				assert.Contains(t, body.Error, tt.wantError)
			}
		})
	}
}

func TestRunDataset_BodyTooLarge(t *testing.T) {
	s := newTestServer(t, nil)
	s.cfg.MaxBodyBytes = 16

	rec := do(t, s.Handler(), http.MethodPost, "/v1/datasets/orders/runs", ordersCSV)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRegistryHistory_SQLStore(t *testing.T) {
	st, err := state.Open(context.Background(), state.DialectSQLite, filepath.Join(t.TempDir(), "gov.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	h := newTestServer(t, st).Handler()
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/v1/datasets/orders/runs", ordersCSV).Code)

	rec := do(t, h, http.MethodGet, "/v1/registry/orders/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	versions := decode[[]core.SchemaVersion](t, rec)
	require.Len(t, versions, 1)
	assert.Equal(t, "0.0.1", versions[0].Version)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(&core.DatasetNotFoundError{Name: "x"}))
	assert.Equal(t, http.StatusBadRequest, statusFor(&core.ConfigError{Problems: []string{"bad"}}))
	assert.Equal(t, http.StatusTeapot, statusFor(withStatus(http.StatusTeapot, fmt.Errorf("tea"))))
	assert.Equal(t, http.StatusInternalServerError, statusFor(fmt.Errorf("disk full")))
}

func TestStreamEvents(t *testing.T) {
	s := newTestServer(t, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))
	reader := bufio.NewReader(resp.Body)

	post, err := http.Post(ts.URL+"/v1/datasets/orders/runs", "text/csv", strings.NewReader(ordersCSV))
	require.NoError(t, err)
	_ = post.Body.Close()
	require.Equal(t, http.StatusOK, post.StatusCode)

	var event, id, data string
	for data == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "id: "):
			id = strings.TrimSpace(strings.TrimPrefix(line, "id: "))
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		}
	}
	assert.Equal(t, string(RunEvent), event)
	assert.Equal(t, "run-1", id)

	var ev notifier.Event
	require.NoError(t, json.Unmarshal([]byte(data), &ev))
	assert.Equal(t, "orders", ev.Dataset)
	assert.Equal(t, "run-1", ev.RunID)
	assert.False(t, ev.Passed)
}

func TestServeListener_Shutdown(t *testing.T) {
	s := New(Config{Engine: newTestServer(t, nil).engine, Server: sharedcfg.ServerConfig{ShutdownTimeout: time.Second}})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ServeListener(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
