package core

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors.
var (
	// ErrDatasetNotFound is returned when a dataset has no rule set.
	ErrDatasetNotFound = errors.New("dataset not found in rule configuration")

	// ErrInvalidVersion is returned when a stored version is not MAJOR.MINOR.PATCH.
	ErrInvalidVersion = errors.New("invalid version")
)

// DatasetNotFoundError is returned when a dataset name is absent from the
// rule configuration. It matches ErrDatasetNotFound with errors.Is.
type DatasetNotFoundError struct {
	Name      string
	Available []string
}

func (e *DatasetNotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("dataset %q not found in rule configuration", e.Name)
	}
	return fmt.Sprintf("dataset %q not found in rule configuration (available: %s)",
		e.Name, strings.Join(e.Available, ", "))
}

// Is reports whether target is ErrDatasetNotFound.
func (e *DatasetNotFoundError) Is(target error) bool {
	return target == ErrDatasetNotFound
}

// ConfigError collects every problem found while validating a rule document.
// Configuration errors are fatal to a run.
type ConfigError struct {
	Source   string
	Problems []string
}

func (e *ConfigError) Error() string {
	prefix := "invalid rule configuration"
	if e.Source != "" {
		prefix = fmt.Sprintf("invalid rule configuration %s", e.Source)
	}
	switch len(e.Problems) {
	case 0:
		return prefix
	case 1:
		return prefix + ": " + e.Problems[0]
	default:
		return prefix + ":\n  - " + strings.Join(e.Problems, "\n  - ")
	}
}

// Add records a problem.
func (e *ConfigError) Add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// OrNil returns e if any problem was recorded, nil otherwise.
func (e *ConfigError) OrNil() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}

// IsConfigError reports whether err is, or wraps, a configuration error.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce) || errors.Is(err, ErrDatasetNotFound)
}
