// Package core defines the shared language of the leapgov system.
//
// This package contains:
//   - Rule configuration types (Schema, ColumnSpec, RuleSet, ExprCheck)
//   - Run results (ValidationResult, Issue, ExprResult, PIIFindings, Report)
//   - Persisted records (RegistryEntry, LineageRecord) and their store contracts
//   - Error types shared across packages
//
// The Golden Rule: pkg/core imports ONLY the standard library.
// All other packages depend on core, not the reverse.
package core
