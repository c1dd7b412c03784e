package core

// Pipeline steps recorded in lineage.
const (
	StepCoerce      = "coerce"
	StepRequired    = "required_checks"
	StepConstraints = "constraint_checks"
	StepQuality     = "quality_checks"
	StepPIIScan     = "pii_scan"
	StepRegistry    = "schema_registry"
	StepDuplicates  = "duplicates"
	StepReport      = "report"
	StepCurate      = "curate"
)

// ColumnProfile summarises one column of the coerced dataset.
type ColumnProfile struct {
	Count      int     `json:"count"`
	Unique     int     `json:"unique"`
	Top        string  `json:"top,omitempty"`
	Freq       int     `json:"freq"`
	MissingPct float64 `json:"missing_pct"`
}

// Report is the governance report of one run. It holds only JSON-safe values
// and is immutable once written.
type Report struct {
	RunID       string                   `json:"run_id"`
	Dataset     string                   `json:"dataset"`
	Rows        int                      `json:"rows"`
	Missing     []string                 `json:"missing"`
	Issues      []Issue                  `json:"issues"`
	Exprs       []ExprResult             `json:"exprs"`
	PII         PIIFindings              `json:"pii"`
	Duplicates  int                      `json:"duplicates"`
	Version     string                   `json:"version"`
	Timestamp   string                   `json:"timestamp"`
	CleanedRows int                      `json:"cleaned_rows"`
	Profile     map[string]ColumnProfile `json:"profile,omitempty"`
}

// Passed reports whether the run found no validation issue, failed check or
// duplicate. PII findings are informational.
func (r *Report) Passed() bool {
	if len(r.Missing) > 0 || len(r.Issues) > 0 || r.Duplicates > 0 {
		return false
	}
	for _, e := range r.Exprs {
		if !e.Passed {
			return false
		}
	}
	return true
}

// FailedChecks returns the quality checks that did not pass.
func (r *Report) FailedChecks() []ExprResult {
	var failed []ExprResult
	for _, e := range r.Exprs {
		if !e.Passed {
			failed = append(failed, e)
		}
	}
	return failed
}

// LineageRecord is one immutable entry of the lineage log.
type LineageRecord struct {
	RunID      string   `json:"run_id,omitempty"`
	Timestamp  string   `json:"timestamp"`
	Dataset    string   `json:"dataset"`
	SourcePath string   `json:"source_path"`
	Checksum   string   `json:"checksum"`
	Version    string   `json:"version"`
	RowCount   int      `json:"row_count"`
	Steps      []string `json:"steps"`
}
