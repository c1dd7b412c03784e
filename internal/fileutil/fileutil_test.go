package fileutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o600))

	tests := []struct {
		algo string
		want string
	}{
		{algo: "", want: "5d41402abc4b2a76b9719d911017c592"},
		{algo: AlgoMD5, want: "5d41402abc4b2a76b9719d911017c592"},
		{algo: AlgoSHA256, want: "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"},
	}

	for _, tt := range tests {
		t.Run("algo "+tt.algo, func(t *testing.T) {
			got, err := Checksum(path, tt.algo)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("xxh3 is stable", func(t *testing.T) {
		a, err := Checksum(path, AlgoXXH3)
		require.NoError(t, err)
		b, err := Checksum(path, AlgoXXH3)
		require.NoError(t, err)
		assert.Equal(t, a, b)
		assert.Len(t, a, 16)
	})
}

func TestChecksumReader(t *testing.T) {
	got, err := ChecksumReader(strings.NewReader("hello"), "")
	require.NoError(t, err)
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", got)

	_, err = ChecksumReader(strings.NewReader("hello"), "crc32")
	assert.Error(t, err)
}

func TestChecksum_Errors(t *testing.T) {
	_, err := Checksum(filepath.Join(t.TempDir(), "missing.csv"), AlgoMD5)
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "x")
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	_, err = Checksum(path, "crc32")
	assert.ErrorContains(t, err, "unknown checksum algorithm")
	assert.False(t, ValidAlgo("crc32"))
	assert.True(t, ValidAlgo("SHA256"))
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "registry.json")

	require.NoError(t, WriteFileAtomic(path, []byte(`{"a":1}`), 0o600))
	require.NoError(t, WriteFileAtomic(path, []byte(`{"a":2}`), 0o600))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files should not be left behind")
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.csv")
	dst := filepath.Join(dir, "lake", "raw", "in.csv")
	require.NoError(t, os.WriteFile(src, []byte("id\n1\n"), 0o600))

	require.NoError(t, CopyFile(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "id\n1\n", string(data))
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 0, 500, time.UTC)
	assert.Equal(t, "2024-03-01T12:30:00.0000005Z", FormatTimestamp(ts))

	parsed, err := time.Parse(time.RFC3339Nano, NowISO())
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), parsed, time.Minute)
}

func TestLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta", "registry.lock")

	unlock, err := Lock(path)
	require.NoError(t, err)
	assert.FileExists(t, path)

	acquired := make(chan func() error)
	go func() {
		second, err := Lock(path)
		assert.NoError(t, err)
		acquired <- second
	}()

	select {
	case <-acquired:
		t.Fatal("second lock granted while the first is held")
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, unlock())
	select {
	case second := <-acquired:
		require.NotNil(t, second)
		assert.NoError(t, second())
	case <-time.After(5 * time.Second):
		t.Fatal("second lock not granted after release")
	}
}
