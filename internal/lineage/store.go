// Package lineage records an append-only audit trail of governance runs.
//
// Every processed dataset produces one record: when it ran, where the input
// came from, its checksum, the registered schema version, the row count and
// the pipeline steps performed. Records are never rewritten.
package lineage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/leapstack-labs/leapgov/internal/fileutil"
	"github.com/leapstack-labs/leapgov/pkg/core"
)

// DefaultPath is the conventional location of the lineage log.
const DefaultPath = "metadata/lineage.jsonl"

// maxLineSize bounds a single JSONL record when reading.
const maxLineSize = 4 << 20

// FileStore appends records as JSON lines. Each record is written with a
// single write on a file opened in append mode.
type FileStore struct {
	path string
	mu   sync.Mutex
}

var _ core.LineageStore = (*FileStore)(nil)

// NewFileStore returns a store writing to path. The file and its directory
// are created on the first Append.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the log location.
func (s *FileStore) Path() string { return s.path }

// Append implements core.LineageStore.
func (s *FileStore) Append(_ context.Context, rec core.LineageRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode lineage record: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fileutil.EnsureDir(filepath.Dir(s.path)); err != nil {
		return err
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // operator supplied path
	if err != nil {
		return fmt.Errorf("failed to open lineage log %s: %w", s.path, err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to append lineage record: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close lineage log: %w", err)
	}
	return nil
}

// ReadAll implements core.LineageStore. A missing log reads as empty; blank
// lines are skipped.
func (s *FileStore) ReadAll(_ context.Context) ([]core.LineageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []core.LineageRecord{}, nil
		}
		return nil, fmt.Errorf("failed to open lineage log %s: %w", s.path, err)
	}
	defer func() { _ = f.Close() }()

	records := []core.LineageRecord{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec core.LineageRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("lineage log %s line %d: %w", s.path, lineNo, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read lineage log %s: %w", s.path, err)
	}
	return records, nil
}
