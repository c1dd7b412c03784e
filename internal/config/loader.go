package config

import (
	"os"
	"path/filepath"
)

// ConfigFileName is the name of the project config file.
const ConfigFileName = "leapgov.yaml"

// ConfigFileNameAlt is the alternate name of the project config file.
const ConfigFileNameAlt = "leapgov.yml"

// maxUpwardSearchLevels limits how far up the directory tree to search.
const maxUpwardSearchLevels = 10

// FindConfigFile returns the config file in dir, or "" if there is none.
func FindConfigFile(dir string) string {
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// FindProjectRoot walks up from startDir to the first directory containing
// a config file. Returns "" if none is found.
func FindProjectRoot(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if FindConfigFile(dir) != "" {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			return ""
		}
		dir = parent
	}
	return ""
}
