// Package engine runs the governance pipeline for one or more datasets.
// It sequences coercion, validation, quality checks, PII scanning, schema
// versioning and duplicate detection, then writes the report, the curated
// dataset and a lineage record.
package engine

import (
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/leapstack-labs/leapgov/internal/fileutil"
	"github.com/leapstack-labs/leapgov/internal/lineage"
	"github.com/leapstack-labs/leapgov/internal/pii"
	"github.com/leapstack-labs/leapgov/internal/registry"
	"github.com/leapstack-labs/leapgov/internal/starlark"
	"github.com/leapstack-labs/leapgov/pkg/core"
)

// Default output locations, relative to the working directory.
const (
	DefaultReportsDir  = "reports"
	DefaultCuratedDir  = "lake/curated"
	DefaultParallelism = 4
)

// Engine orchestrates governance runs. It is safe for concurrent use.
type Engine struct {
	rules     *core.RuleConfig
	registry  *registry.Service
	recorder  *lineage.Recorder
	evaluator *starlark.Evaluator
	scanner   *pii.Scanner

	reportsDir  string
	curatedDir  string
	rawDir      string
	checksum    string
	parallelism int

	clock    fileutil.Clock
	newRunID func() string
	logger   *slog.Logger
}

// Config holds engine configuration.
type Config struct {
	// Rules is the parsed rule configuration (required)
	Rules *core.RuleConfig
	// Registry versions schemas (default: JSON file at registry.DefaultPath)
	Registry *registry.Service
	// Lineage records runs (default: JSONL file at lineage.DefaultPath)
	Lineage *lineage.Recorder
	// Evaluator runs quality checks (optional)
	Evaluator *starlark.Evaluator
	// Scanner detects PII (optional, samples pii.DefaultSampleLimit values)
	Scanner *pii.Scanner

	// ReportsDir receives <name>_report.json
	ReportsDir string
	// CuratedDir receives <name>_cleaned.csv
	CuratedDir string
	// RawDir, when set, receives a copy of every input file before the run
	RawDir string
	// Checksum is the lineage checksum algorithm (default md5)
	Checksum string
	// Parallelism bounds RunAll concurrency (default 4)
	Parallelism int

	// Clock stamps reports (optional)
	Clock fileutil.Clock
	// NewRunID generates run identifiers (default: random UUID)
	NewRunID func() string
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// New creates an engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Rules == nil {
		return nil, errors.New("engine requires a rule configuration")
	}
	if cfg.Checksum != "" && !fileutil.ValidAlgo(cfg.Checksum) {
		return nil, &core.ConfigError{Problems: []string{"unknown checksum algorithm " + cfg.Checksum}}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = fileutil.SystemClock
	}

	reg := cfg.Registry
	if reg == nil {
		reg = registry.NewService(registry.NewFileStore(registry.DefaultPath), logger)
	}
	rec := cfg.Lineage
	if rec == nil {
		rec = lineage.NewRecorder(lineage.NewFileStore(lineage.DefaultPath), clock, logger)
	}
	eval := cfg.Evaluator
	if eval == nil {
		eval = &starlark.Evaluator{Logger: logger}
	}
	scanner := cfg.Scanner
	if scanner == nil {
		scanner = pii.New(pii.DefaultSampleLimit)
	}

	e := &Engine{
		rules:       cfg.Rules,
		registry:    reg,
		recorder:    rec,
		evaluator:   eval,
		scanner:     scanner,
		reportsDir:  orDefault(cfg.ReportsDir, DefaultReportsDir),
		curatedDir:  orDefault(cfg.CuratedDir, DefaultCuratedDir),
		rawDir:      cfg.RawDir,
		checksum:    orDefault(cfg.Checksum, fileutil.DefaultAlgo),
		parallelism: cfg.Parallelism,
		clock:       clock,
		newRunID:    cfg.NewRunID,
		logger:      logger,
	}
	if e.parallelism <= 0 {
		e.parallelism = DefaultParallelism
	}
	if e.newRunID == nil {
		e.newRunID = uuid.NewString
	}

	logger.Debug("initializing engine", "datasets", len(cfg.Rules.Datasets), "reports_dir", e.reportsDir)
	return e, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// --- Getters (public accessors) ---

// Rules returns the rule configuration.
func (e *Engine) Rules() *core.RuleConfig { return e.rules }

// Registry returns the schema registry.
func (e *Engine) Registry() *registry.Service { return e.registry }

// Lineage returns the lineage recorder.
func (e *Engine) Lineage() *lineage.Recorder { return e.recorder }

// ReportPath returns where the report of a dataset is written.
func (e *Engine) ReportPath(name string) string {
	return filepath.Join(e.reportsDir, name+"_report.json")
}

// CuratedPath returns where the cleaned dataset is written.
func (e *Engine) CuratedPath(name string) string {
	return filepath.Join(e.curatedDir, name+"_cleaned.csv")
}
