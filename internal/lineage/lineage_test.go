package lineage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/leapstack-labs/leapgov/internal/testutil"
	"github.com/leapstack-labs/leapgov/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
}

func TestRecorder_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "metadata", "lineage.jsonl")
	rec := NewRecorder(NewFileStore(path), fixedClock, testutil.NewTestLogger(t))

	first := core.LineageRecord{
		RunID:      "run-1",
		Dataset:    "orders",
		SourcePath: "data/orders.csv",
		Checksum:   "5d41402abc4b2a76b9719d911017c592",
		Version:    "0.0.1",
		RowCount:   3,
		Steps:      []string{core.StepCoerce, core.StepReport},
	}
	require.NoError(t, rec.Record(ctx, first))
	require.NoError(t, rec.Record(ctx, core.LineageRecord{Dataset: "customers", Version: "0.0.1", Timestamp: "2024-05-02T00:00:00Z"}))

	records, err := rec.Store().ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)

	first.Timestamp = "2024-05-01T12:30:00Z"
	assert.Equal(t, first, records[0])
	assert.Equal(t, "2024-05-02T00:00:00Z", records[1].Timestamp, "explicit timestamp kept")
	assert.Equal(t, []string{}, records[1].Steps)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"source_path":"data/orders.csv"`)
}

func TestRecorder_AppendOnly(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "lineage.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"timestamp":"t0","dataset":"legacy","source_path":"","checksum":"","version":"0.0.1","row_count":1,"steps":[]}`+"\n"), 0o600))

	rec := NewRecorder(NewFileStore(path), fixedClock, nil)
	require.NoError(t, rec.Record(ctx, core.LineageRecord{Dataset: "orders"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), `{"timestamp":"t0","dataset":"legacy"`), "prior records untouched")
}

func TestRecorder_History(t *testing.T) {
	ctx := context.Background()
	rec := NewRecorder(NewFileStore(filepath.Join(t.TempDir(), "lineage.jsonl")), fixedClock, nil)

	for i, ds := range []string{"orders", "customers", "orders", "orders"} {
		require.NoError(t, rec.Record(ctx, core.LineageRecord{RunID: fmt.Sprintf("r%d", i), Dataset: ds}))
	}

	got, err := rec.History(ctx, "orders", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "r3", got[0].RunID, "newest first")
	assert.Equal(t, "r2", got[1].RunID)

	all, err := rec.History(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	none, err := rec.History(ctx, "unknown", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFileStore_ReadAll(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	missing, err := NewFileStore(filepath.Join(dir, "absent.jsonl")).ReadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, missing)

	blank := filepath.Join(dir, "blank.jsonl")
	require.NoError(t, os.WriteFile(blank, []byte("\n{\"dataset\":\"a\"}\n\n"), 0o600))
	records, err := NewFileStore(blank).ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a", records[0].Dataset)

	corrupt := filepath.Join(dir, "corrupt.jsonl")
	require.NoError(t, os.WriteFile(corrupt, []byte("{\"dataset\":\"a\"}\nnot json\n"), 0o600))
	_, err = NewFileStore(corrupt).ReadAll(ctx)
	assert.ErrorContains(t, err, "line 2")
}

func TestFileStore_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "lineage.jsonl"))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Append(ctx, core.LineageRecord{RunID: fmt.Sprintf("r%d", i), Dataset: "orders"}))
		}()
	}
	wg.Wait()

	records, err := store.ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 50, "every append produced exactly one intact line")
}
