package core

import (
	"fmt"
	"strconv"
	"strings"
)

// InitialVersion is the implicit version of a dataset that has never been
// registered. The first upsert bumps it to 0.0.1.
const InitialVersion = "0.0.0"

// Version is a MAJOR.MINOR.PATCH schema version.
type Version struct {
	Major, Minor, Patch int
}

// ParseVersion parses a MAJOR.MINOR.PATCH string. An empty string parses as
// InitialVersion.
func ParseVersion(s string) (Version, error) {
	if s == "" {
		s = InitialVersion
	}
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}
	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// BumpPatch returns the version with PATCH incremented by one.
func (v Version) BumpPatch() Version {
	v.Patch++
	return v
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// RegistryEntry is the persisted state of one dataset in the schema registry.
type RegistryEntry struct {
	Schema  Schema `json:"schema"`
	Version string `json:"version"`
}
