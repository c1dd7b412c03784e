package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/leapstack-labs/leapgov/pkg/core"
)

// Append implements core.LineageStore.
func (s *Store) Append(ctx context.Context, rec core.LineageRecord) error {
	if err := s.ready(); err != nil {
		return err
	}

	steps := rec.Steps
	if steps == nil {
		steps = []string{}
	}
	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return fmt.Errorf("failed to encode lineage steps: %w", err)
	}
	ts := rec.Timestamp
	if ts == "" {
		ts = s.now()
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO lineage_records
			(run_id, recorded_at, dataset, source_path, checksum, version, row_count, steps_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), nullString(rec.RunID), ts, rec.Dataset, rec.SourcePath, rec.Checksum, rec.Version, rec.RowCount, string(stepsJSON))
	if err != nil {
		return fmt.Errorf("failed to append lineage record for %s: %w", rec.Dataset, err)
	}
	return nil
}

// ReadAll implements core.LineageStore.
func (s *Store) ReadAll(ctx context.Context) ([]core.LineageRecord, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, recorded_at, dataset, source_path, checksum, version, row_count, steps_json
		FROM lineage_records
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query lineage: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []core.LineageRecord
	for rows.Next() {
		var (
			rec       core.LineageRecord
			runID     sql.NullString
			stepsJSON string
		)
		if err := rows.Scan(&runID, &rec.Timestamp, &rec.Dataset, &rec.SourcePath,
			&rec.Checksum, &rec.Version, &rec.RowCount, &stepsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan lineage record: %w", err)
		}
		rec.RunID = runID.String
		if err := json.Unmarshal([]byte(stepsJSON), &rec.Steps); err != nil {
			return nil, fmt.Errorf("failed to decode lineage steps: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query lineage: %w", err)
	}
	return records, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
