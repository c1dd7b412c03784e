package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// Lock takes an exclusive advisory lock on path, creating the file if
// needed, and blocks until it is granted. The lock is released by the
// returned function or when the process exits.
func Lock(path string) (func() error, error) {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", path, err)
	}
	if err := lockFile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	return func() error {
		uerr := unlockFile(f)
		cerr := f.Close()
		if uerr != nil {
			return fmt.Errorf("failed to unlock %s: %w", path, uerr)
		}
		return cerr
	}, nil
}
