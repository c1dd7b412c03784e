// Package registry versions dataset schemas.
//
// Each dataset name maps to its last registered schema and a MAJOR.MINOR.PATCH
// version. Registering a schema that differs from the stored one bumps the
// patch component; registering an identical schema leaves the version as is.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/leapgov/pkg/core"
)

// ErrHistoryUnsupported is returned by History when the backing store does not
// keep prior versions.
var ErrHistoryUnsupported = errors.New("schema store does not keep version history")

// Service versions schemas on top of a SchemaStore. Upserts of the same
// dataset queue on a per-name lock within the process; the store's Update
// excludes other processes.
type Service struct {
	store  core.SchemaStore
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a registry over store. A nil logger discards output.
func NewService(store core.SchemaStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		store:  store,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

// Store returns the backing store.
func (s *Service) Store() core.SchemaStore { return s.store }

func (s *Service) lock(name string) func() {
	s.mu.Lock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Upsert registers schema under name and returns the resulting version.
// The first registration yields 0.0.1. The comparison and the bump happen
// inside one store Update, so concurrent writers never reuse a version.
func (s *Service) Upsert(ctx context.Context, name string, schema core.Schema) (string, error) {
	unlock := s.lock(name)
	defer unlock()

	var current, next string
	err := s.store.Update(ctx, name, func(entry *core.RegistryEntry) (*core.RegistryEntry, error) {
		current, next = core.InitialVersion, ""
		if entry != nil {
			current = entry.Version
			if entry.Schema != nil && entry.Schema.Equal(schema) {
				return nil, nil
			}
		}

		v, err := core.ParseVersion(current)
		if err != nil {
			return nil, fmt.Errorf("registry entry for %s: %w", name, err)
		}
		next = v.BumpPatch().String()
		return &core.RegistryEntry{Schema: schema.Clone(), Version: next}, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to update registry entry for %s: %w", name, err)
	}

	if next == "" {
		s.logger.Debug("schema unchanged", "dataset", name, "version", current)
		return current, nil
	}
	s.logger.Info("schema version bumped", "dataset", name, "from", current, "to", next)
	return next, nil
}

// Get returns the registered entry for name, or nil if it was never
// registered.
func (s *Service) Get(ctx context.Context, name string) (*core.RegistryEntry, error) {
	entry, err := s.store.Load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to load registry entry for %s: %w", name, err)
	}
	return entry, nil
}

// List returns every registered entry keyed by dataset name.
func (s *Service) List(ctx context.Context) (map[string]core.RegistryEntry, error) {
	entries, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list registry: %w", err)
	}
	return entries, nil
}

// History returns every recorded version of name, oldest first.
func (s *Service) History(ctx context.Context, name string) ([]core.SchemaVersion, error) {
	h, ok := s.store.(core.SchemaHistory)
	if !ok {
		return nil, ErrHistoryUnsupported
	}
	versions, err := h.History(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema history for %s: %w", name, err)
	}
	return versions, nil
}
