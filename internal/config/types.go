// Package config provides shared configuration types for leapgov.
// This package is decoupled from CLI concerns so the HTTP server and tests
// can describe stores and listeners without importing the cobra layer.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/leapstack-labs/leapgov/internal/state"
)

// Store backends.
const (
	StoreFile     = "file"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// StoreConfig selects where the schema registry and lineage log live.
// The file backend uses the registry and lineage paths; SQL backends keep
// both in one database.
type StoreConfig struct {
	Type string `koanf:"type"` // file, sqlite, postgres
	DSN  string `koanf:"dsn"`  // sqlite path or postgres URL
}

// IsSQL reports whether the store is backed by a database.
func (s *StoreConfig) IsSQL() bool {
	return s != nil && s.Type != "" && s.Type != StoreFile
}

// Dialect returns the SQL dialect of a database-backed store.
func (s *StoreConfig) Dialect() (state.Dialect, error) {
	return state.ParseDialect(s.Type)
}

// Validate checks if the store configuration is valid.
func (s *StoreConfig) Validate() error {
	if s == nil {
		return fmt.Errorf("store configuration is required")
	}
	if s.Type == "" || strings.EqualFold(s.Type, StoreFile) {
		return nil
	}
	if _, err := s.Dialect(); err != nil {
		return fmt.Errorf("invalid store type %q (available: %s, %s, %s)", s.Type, StoreFile, StoreSQLite, StorePostgres)
	}
	if s.DSN == "" && !strings.EqualFold(s.Type, StoreSQLite) {
		return fmt.Errorf("store.dsn is required for %s", s.Type)
	}
	return nil
}

// ServerConfig holds configuration for the HTTP adapter.
type ServerConfig struct {
	Addr              string        `koanf:"addr"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
	MaxBodyBytes      int64         `koanf:"max_body_bytes"`
}
