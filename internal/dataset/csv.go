package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DefaultNAValues are the field texts read as missing values. They match the
// tokens common CSV tooling treats as NA.
var DefaultNAValues = []string{
	"", "#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
	"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None", "n/a", "nan", "null",
}

// ReadOptions controls CSV parsing.
type ReadOptions struct {
	// NAValues overrides DefaultNAValues when non-nil.
	NAValues []string
	// Comma is the field delimiter (default ',').
	Comma rune
}

func (o ReadOptions) naSet() map[string]struct{} {
	values := o.NAValues
	if values == nil {
		values = DefaultNAValues
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// ReadCSV parses a CSV stream with a header row into a table of raw string
// cells. NA tokens become missing values.
func ReadCSV(r io.Reader, opts ReadOptions) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	if opts.Comma != 0 {
		reader.Comma = opts.Comma
	}

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return New(0), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	na := opts.naSet()
	var records [][]any
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		if len(rec) > len(header) {
			line, _ := reader.FieldPos(0)
			return nil, fmt.Errorf("CSV line %d has %d fields, header has %d", line, len(rec), len(header))
		}
		row := make([]any, len(header))
		for i, field := range rec {
			if _, isNA := na[field]; isNA {
				continue
			}
			row[i] = field
		}
		records = append(records, row)
	}

	return FromRows(header, records)
}

// ReadCSVFile reads a CSV file from disk.
func ReadCSVFile(path string, opts ReadOptions) (*Table, error) {
	f, err := os.Open(path) //nolint:gosec // path is provided by the operator
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset %s: %w", path, err)
	}
	defer f.Close()

	t, err := ReadCSV(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// WriteCSV writes the table with a header row. Cells are rendered with
// Render; missing values become empty fields.
func WriteCSV(w io.Writer, t *Table) error {
	writer := csv.NewWriter(w)
	columns := t.Columns()
	if err := writer.Write(columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	record := make([]string, len(columns))
	for i := 0; i < t.Len(); i++ {
		for c, name := range columns {
			record[c] = t.Render(name, t.Value(name, i))
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteCSVFile writes the table to path, creating parent directories.
func WriteCSVFile(path string, t *Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.Create(path) //nolint:gosec // path is derived from configuration
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WriteCSV(f, t); err != nil {
		_ = f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}
