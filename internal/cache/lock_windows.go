//go:build windows

package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const lockFileName = "cache.lock"

// Lock is a best-effort, PID-marker lock on Windows, where true flock
// semantics aren't available through syscall in the same form.
type Lock struct {
	path string
	file *os.File
}

// AcquireLock writes our PID into dir/cache.lock. Not truly atomic —
// see the Unix implementation for the real guarantee.
func AcquireLock(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	path := filepath.Join(dir, lockFileName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}
	if _, err := file.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("writing pid to lock file: %w", err)
	}

	return &Lock{path: path, file: file}, nil
}

// Release closes and removes the lock file.
func (l *Lock) Release() {
	if l == nil || l.file == nil {
		return
	}
	_ = l.file.Close()
	_ = os.Remove(l.path)
}
