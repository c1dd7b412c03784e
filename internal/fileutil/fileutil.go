// Package fileutil provides content hashing, timestamps and file helpers
// used by the governance pipeline and its lineage records.
package fileutil

import (
	"crypto/md5" //nolint:gosec // md5 is a content fingerprint here, not a security control
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeebo/xxh3"
)

// Supported checksum algorithms.
const (
	AlgoMD5    = "md5"
	AlgoSHA256 = "sha256"
	AlgoXXH3   = "xxh3"
)

// DefaultAlgo is the checksum algorithm used when none is configured.
const DefaultAlgo = AlgoMD5

const chunkSize = 8192

func newHash(algo string) (hash.Hash, error) {
	switch strings.ToLower(algo) {
	case "", AlgoMD5:
		return md5.New(), nil //nolint:gosec // see import
	case AlgoSHA256:
		return sha256.New(), nil
	case AlgoXXH3:
		return xxh3.New(), nil
	default:
		return nil, fmt.Errorf("unknown checksum algorithm %q (want md5, sha256 or xxh3)", algo)
	}
}

// ValidAlgo reports whether algo names a supported checksum algorithm.
func ValidAlgo(algo string) bool {
	_, err := newHash(algo)
	return err == nil
}

// Checksum returns the hex digest of the file at path.
func Checksum(path, algo string) (string, error) {
	h, err := newHash(algo)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for checksum: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("failed to read %s for checksum: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ChecksumReader returns the hex digest of everything read from r.
func ChecksumReader(r io.Reader, algo string) (string, error) {
	h, err := newHash(algo)
	if err != nil {
		return "", err
	}
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", fmt.Errorf("failed to read data for checksum: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// EnsureDir creates dir and any missing parents.
func EnsureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// WriteFileAtomic writes data to a temporary file in the target directory and
// renames it over path, so readers never observe a partial document.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := EnsureDir(dir); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		cleanup()
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// CopyFile copies src to dst, creating dst's directory if needed.
func CopyFile(src, dst string) error {
	if err := EnsureDir(filepath.Dir(dst)); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return out.Close()
}

// Clock returns the current time. Tests substitute a fixed clock.
type Clock func() time.Time

// SystemClock is the wall clock.
func SystemClock() time.Time { return time.Now() }

// FormatTimestamp renders t as RFC 3339 with sub-second precision.
func FormatTimestamp(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

// NowISO returns the current wall-clock time formatted with FormatTimestamp.
func NowISO() string {
	return FormatTimestamp(SystemClock())
}
