//go:build !unix && !windows

package fileutil

import "os"

// Platforms without advisory locks fall back to in-process locking only.
func lockFile(*os.File) error   { return nil }
func unlockFile(*os.File) error { return nil }
