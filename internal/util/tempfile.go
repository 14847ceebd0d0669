package util

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const randomAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// MinFreeSpace is the free space below which CheckDiskSpace warns.
const MinFreeSpace uint64 = 512 * 1024 * 1024

// TempDir is a scratch directory removed by Cleanup.
type TempDir struct {
	path string
}

// Path returns the directory path.
func (d *TempDir) Path() string { return d.path }

// Cleanup removes the directory and everything in it.
func (d *TempDir) Cleanup() error { return os.RemoveAll(d.path) }

// EnsureDirectoryWritable creates path if needed and returns an error unless
// it is a writable directory.
func EnsureDirectoryWritable(path string) error {
	if err := EnsureDirectory(path); err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	f, err := os.CreateTemp(path, ".seamloop_write_*")
	if err != nil {
		return fmt.Errorf("%s is not writable: %w", path, err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

// CreateTempDir creates baseDir/prefix_<random>.
func CreateTempDir(baseDir, prefix string) (*TempDir, error) {
	suffix, err := generateRandomString(8)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(baseDir, prefix+"_"+suffix)
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, err
	}
	return &TempDir{path: path}, nil
}

// CleanupStaleTempFiles removes entries in dir starting with prefix_ that are
// older than maxAge. A missing dir is not an error.
func CleanupStaleTempFiles(dir, prefix string, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), prefix+"_") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}

// CheckDiskSpace reports whether path has at least MinFreeSpace available,
// logging a warning through logf when it does not. Unknown space passes.
func CheckDiskSpace(path string, logf func(format string, args ...any)) bool {
	avail := GetAvailableSpace(path)
	if avail == 0 || avail >= MinFreeSpace {
		return true
	}
	if logf != nil {
		logf("low disk space in %s: %s available", path, FormatBytes(avail))
	}
	return false
}

func generateRandomString(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = randomAlphabet[int(b)%len(randomAlphabet)]
	}
	return string(buf), nil
}
