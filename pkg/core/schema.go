package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// Column types
// =============================================================================

// ColumnType is the declared type of a schema column. It determines how raw
// values are coerced before any check runs.
type ColumnType string

// Supported column types.
const (
	TypeInt    ColumnType = "int"
	TypeFloat  ColumnType = "float"
	TypeString ColumnType = "str"
	TypeDate   ColumnType = "date"
)

// DefaultDateFormat is the strftime format used for date columns without an
// explicit format.
const DefaultDateFormat = "%Y-%m-%d"

// ParseColumnType converts a string to a ColumnType.
// An empty string yields TypeString.
func ParseColumnType(s string) (ColumnType, error) {
	switch ColumnType(strings.ToLower(strings.TrimSpace(s))) {
	case "", TypeString:
		return TypeString, nil
	case TypeInt:
		return TypeInt, nil
	case TypeFloat:
		return TypeFloat, nil
	case TypeDate:
		return TypeDate, nil
	default:
		return "", fmt.Errorf("unknown column type %q (want int, float, str or date)", s)
	}
}

// IsNumeric reports whether values of this type are compared numerically.
func (t ColumnType) IsNumeric() bool {
	return t == TypeInt || t == TypeFloat
}

// =============================================================================
// Schema
// =============================================================================

// ColumnSpec declares the type and constraints of a single column.
//
// Min and Max hold a float64 for numeric columns and a string otherwise
// (dates in the column's format, plain strings compared lexicographically).
// Allowed values are normalised to the column type when rules are loaded.
type ColumnSpec struct {
	Type     ColumnType `json:"type"`
	Required bool       `json:"required,omitempty"`
	Format   string     `json:"format,omitempty"`
	Min      any        `json:"min,omitempty"`
	Max      any        `json:"max,omitempty"`
	Allowed  []any      `json:"allowed,omitempty"`
	Regex    string     `json:"regex,omitempty"`
}

// DateFormat returns the strftime format for a date column.
func (c ColumnSpec) DateFormat() string {
	if c.Format == "" {
		return DefaultDateFormat
	}
	return c.Format
}

// Schema maps column names to their specs. Column names are unique by
// construction.
type Schema map[string]ColumnSpec

// Columns returns the declared column names in sorted order.
func (s Schema) Columns() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Canonical returns the canonical JSON encoding of the schema. Map keys are
// sorted by encoding/json, so two value-equal schemas encode identically.
func (s Schema) Canonical() ([]byte, error) {
	if s == nil {
		s = Schema{}
	}
	return json.Marshal(s)
}

// Equal reports whether two schemas are equal by value.
func (s Schema) Equal(other Schema) bool {
	a, errA := s.Canonical()
	b, errB := other.Canonical()
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// Clone returns a deep copy of the schema.
func (s Schema) Clone() Schema {
	if s == nil {
		return nil
	}
	out := make(Schema, len(s))
	for name, spec := range s {
		if spec.Allowed != nil {
			allowed := make([]any, len(spec.Allowed))
			copy(allowed, spec.Allowed)
			spec.Allowed = allowed
		}
		out[name] = spec
	}
	return out
}
