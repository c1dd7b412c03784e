package engine

// run.go - Governance pipeline for a single dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/leapgov/internal/dataset"
	"github.com/leapstack-labs/leapgov/internal/fileutil"
	"github.com/leapstack-labs/leapgov/internal/validate"
	"github.com/leapstack-labs/leapgov/pkg/core"
)

// RunRequest identifies the dataset to govern and its input.
type RunRequest struct {
	// Dataset is the rule set name.
	Dataset string
	// SourcePath is the input CSV. Defaults to the rule set's source.
	SourcePath string
	// Table, when set, is used instead of reading SourcePath. SourcePath is
	// then only recorded in lineage.
	Table *dataset.Table
}

// input is a loaded dataset plus what lineage needs to know about it.
type input struct {
	table    *dataset.Table
	path     string
	checksum string
}

// Run governs one dataset. Validation issues, failed checks, PII findings and
// duplicates are collected into the returned report. Only configuration and
// I/O failures are returned as errors, and in that case no report or lineage
// record is written.
func (e *Engine) Run(ctx context.Context, req RunRequest) (*core.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rs, err := e.rules.Lookup(req.Dataset)
	if err != nil {
		return nil, err
	}

	runID := e.newRunID()
	logger := e.logger.With("run_id", runID, "dataset", req.Dataset)
	logger.Info("starting run")

	in, err := e.load(req, rs)
	if err != nil {
		return nil, err
	}
	schema := rs.Schema
	steps := []string{core.StepCoerce}

	coerced := validate.Coerce(in.table, schema)

	var vr core.ValidationResult
	vr.Missing = validate.RequiredChecks(coerced, schema)
	steps = append(steps, core.StepRequired)

	vr.Issues = validate.ConstraintChecks(coerced, schema)
	steps = append(steps, core.StepConstraints)

	vr.Exprs = e.evaluator.Evaluate(ctx, coerced, rs.QualityChecks, rs.ExprContext())
	steps = append(steps, core.StepQuality)

	findings := core.PIIFindings{}
	if rs.PIIScan {
		findings = e.scanner.Scan(coerced)
		steps = append(steps, core.StepPIIScan)
	}

	version, err := e.registry.Upsert(ctx, req.Dataset, schema)
	if err != nil {
		return nil, err
	}
	steps = append(steps, core.StepRegistry)

	duplicates := CountDuplicates(coerced, rs.IDColumn)
	steps = append(steps, core.StepDuplicates)

	cleaned := coerced.DropMissing(schema.Columns())

	report := &core.Report{
		RunID:       runID,
		Dataset:     req.Dataset,
		Rows:        coerced.Len(),
		Missing:     nonNil(vr.Missing),
		Issues:      nonNil(vr.Issues),
		Exprs:       nonNil(vr.Exprs),
		PII:         findings,
		Duplicates:  duplicates,
		Version:     version,
		Timestamp:   fileutil.FormatTimestamp(e.clock()),
		CleanedRows: cleaned.Len(),
		Profile:     Profile(coerced),
	}

	if err := e.writeReport(report); err != nil {
		return nil, err
	}
	steps = append(steps, core.StepReport)

	if err := dataset.WriteCSVFile(e.CuratedPath(req.Dataset), cleaned); err != nil {
		return nil, fmt.Errorf("failed to write curated dataset: %w", err)
	}
	steps = append(steps, core.StepCurate)

	err = e.recorder.Record(ctx, core.LineageRecord{
		RunID:      runID,
		Dataset:    req.Dataset,
		SourcePath: in.path,
		Checksum:   in.checksum,
		Version:    version,
		RowCount:   coerced.Len(),
		Steps:      steps,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("run completed",
		"rows", report.Rows,
		"version", version,
		"missing", len(report.Missing),
		"issues", len(report.Issues),
		"failed_checks", len(report.FailedChecks()),
		"pii_columns", len(findings),
		"duplicates", duplicates,
	)
	return report, nil
}

// load reads the input, staging a copy in the raw directory when configured,
// and fingerprints it.
func (e *Engine) load(req RunRequest, rs *core.RuleSet) (*input, error) {
	path := req.SourcePath
	if path == "" {
		path = rs.Source
	}

	if req.Table != nil {
		sum, err := e.tableChecksum(req.Table)
		if err != nil {
			return nil, err
		}
		if e.rawDir != "" {
			name := filepath.Base(path)
			if path == "" {
				name = req.Dataset + ".csv"
			}
			staged := filepath.Join(e.rawDir, name)
			if err := dataset.WriteCSVFile(staged, req.Table); err != nil {
				return nil, fmt.Errorf("failed to stage input: %w", err)
			}
			path = staged
		}
		return &input{table: req.Table, path: path, checksum: sum}, nil
	}

	if path == "" {
		return nil, fmt.Errorf("no input for dataset %q: set a source in the rules or pass a path", req.Dataset)
	}
	if e.rawDir != "" {
		staged := filepath.Join(e.rawDir, filepath.Base(path))
		if staged != filepath.Clean(path) {
			if err := fileutil.CopyFile(path, staged); err != nil {
				return nil, fmt.Errorf("failed to stage input: %w", err)
			}
		}
		path = staged
	}

	table, err := dataset.ReadCSVFile(path, dataset.ReadOptions{})
	if err != nil {
		return nil, err
	}
	sum, err := fileutil.Checksum(path, e.checksum)
	if err != nil {
		return nil, err
	}
	return &input{table: table, path: path, checksum: sum}, nil
}

func (e *Engine) tableChecksum(t *dataset.Table) (string, error) {
	var buf bytes.Buffer
	if err := dataset.WriteCSV(&buf, t); err != nil {
		return "", fmt.Errorf("failed to fingerprint input: %w", err)
	}
	return fileutil.ChecksumReader(&buf, e.checksum)
}

func (e *Engine) writeReport(r *core.Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	path := e.ReportPath(r.Dataset)
	if err := fileutil.WriteFileAtomic(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// ReadReport returns the last report written for a dataset. The error wraps
// fs.ErrNotExist when the dataset has never run.
func (e *Engine) ReadReport(name string) (*core.Report, error) {
	data, err := os.ReadFile(e.ReportPath(name))
	if err != nil {
		return nil, fmt.Errorf("failed to read report for %s: %w", name, err)
	}
	var r core.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse report for %s: %w", name, err)
	}
	return &r, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
