package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/leapstack-labs/leapgov/internal/fileutil"
	"github.com/leapstack-labs/leapgov/pkg/core"
)

// DefaultPath is the conventional location of the registry document.
const DefaultPath = "metadata/schema_registry.json"

// FileStore keeps the whole registry in one JSON document keyed by dataset
// name. Every write rewrites the document atomically. Writers hold a mutex
// within the process and an advisory lock on a sibling ".lock" file across
// processes.
type FileStore struct {
	path string
	mu   sync.Mutex
}

var _ core.SchemaStore = (*FileStore)(nil)

// NewFileStore returns a store backed by the JSON document at path. The file
// is created on first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the document location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) read() (map[string]core.RegistryEntry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]core.RegistryEntry{}, nil
		}
		return nil, fmt.Errorf("failed to read schema registry %s: %w", s.path, err)
	}
	doc := map[string]core.RegistryEntry{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse schema registry %s: %w", s.path, err)
	}
	return doc, nil
}

// Load implements core.SchemaStore.
func (s *FileStore) Load(_ context.Context, name string) (*core.RegistryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	entry, ok := doc[name]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

// LockPath returns the location of the lock file guarding writes.
func (s *FileStore) LockPath() string { return s.path + ".lock" }

func (s *FileStore) write(doc map[string]core.RegistryEntry) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode schema registry: %w", err)
	}
	return fileutil.WriteFileAtomic(s.path, append(data, '\n'), 0o644)
}

// Save implements core.SchemaStore.
func (s *FileStore) Save(ctx context.Context, name string, entry core.RegistryEntry) error {
	return s.Update(ctx, name, func(*core.RegistryEntry) (*core.RegistryEntry, error) {
		return &entry, nil
	})
}

// Update implements core.SchemaStore. The document is re-read under the lock,
// so changes made by other processes are never overwritten.
func (s *FileStore) Update(_ context.Context, name string, fn func(*core.RegistryEntry) (*core.RegistryEntry, error)) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := fileutil.Lock(s.LockPath())
	if err != nil {
		return err
	}
	defer func() {
		if uerr := unlock(); uerr != nil && err == nil {
			err = uerr
		}
	}()

	doc, err := s.read()
	if err != nil {
		return err
	}
	var current *core.RegistryEntry
	if entry, ok := doc[name]; ok {
		current = &entry
	}
	next, err := fn(current)
	if err != nil || next == nil {
		return err
	}
	doc[name] = *next
	return s.write(doc)
}

// List implements core.SchemaStore.
func (s *FileStore) List(_ context.Context) (map[string]core.RegistryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}
