package lineage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapgov/internal/fileutil"
	"github.com/leapstack-labs/leapgov/pkg/core"
)

// Recorder appends lineage records to a store.
type Recorder struct {
	store  core.LineageStore
	clock  fileutil.Clock
	logger *slog.Logger
}

// NewRecorder creates a recorder. A nil clock uses the system clock and a
// nil logger discards output.
func NewRecorder(store core.LineageStore, clock fileutil.Clock, logger *slog.Logger) *Recorder {
	if clock == nil {
		clock = fileutil.SystemClock
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Recorder{store: store, clock: clock, logger: logger}
}

// Store returns the backing store.
func (r *Recorder) Store() core.LineageStore { return r.store }

// Record appends rec, stamping the current time when rec has none.
func (r *Recorder) Record(ctx context.Context, rec core.LineageRecord) error {
	if rec.Timestamp == "" {
		rec.Timestamp = fileutil.FormatTimestamp(r.clock())
	}
	if rec.Steps == nil {
		rec.Steps = []string{}
	}
	if err := r.store.Append(ctx, rec); err != nil {
		return fmt.Errorf("failed to record lineage for %s: %w", rec.Dataset, err)
	}
	r.logger.Debug("lineage recorded", "dataset", rec.Dataset, "run_id", rec.RunID, "version", rec.Version)
	return nil
}

// History returns records newest first. An empty dataset matches every
// record; a limit of zero or less returns all matches.
func (r *Recorder) History(ctx context.Context, dataset string, limit int) ([]core.LineageRecord, error) {
	all, err := r.store.ReadAll(ctx)
	if err != nil {
		return nil, err
	}

	out := []core.LineageRecord{}
	for i := len(all) - 1; i >= 0; i-- {
		if dataset != "" && all[i].Dataset != dataset {
			continue
		}
		out = append(out, all[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
