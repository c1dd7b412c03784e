package config

import (
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultRulesPath    = "config/rules.yaml"
	DefaultRegistryPath = "metadata/schema_registry.json"
	DefaultLineagePath  = "metadata/lineage.jsonl"
	DefaultReportsDir   = "reports"
	DefaultCuratedDir   = "lake/curated"
	DefaultStateDB      = "metadata/leapgov.db"
	DefaultChecksum     = "md5"

	DefaultServerAddr        = ":8765"
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultShutdownTimeout   = 5 * time.Second
	DefaultMaxBodyBytes      = 32 << 20
)

// ApplyStoreDefaults fills unset store fields. A sqlite store without a DSN
// uses DefaultStateDB.
func ApplyStoreDefaults(s *StoreConfig) {
	if s == nil {
		return
	}
	s.Type = strings.ToLower(s.Type)
	if s.Type == "" {
		s.Type = StoreFile
	}
	if s.Type == StoreSQLite && s.DSN == "" {
		s.DSN = DefaultStateDB
	}
}

// ApplyServerDefaults fills unset server fields.
func ApplyServerDefaults(s *ServerConfig) {
	if s == nil {
		return
	}
	if s.Addr == "" {
		s.Addr = DefaultServerAddr
	}
	if s.ReadHeaderTimeout <= 0 {
		s.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	if s.ShutdownTimeout <= 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}
	if s.MaxBodyBytes <= 0 {
		s.MaxBodyBytes = DefaultMaxBodyBytes
	}
}
