//go:build windows

package service

import (
	"fmt"
	"os"
)

// Windows has no syscall.Flock. The bbolt file lock still keeps a second
// process out of the databases, but it blocks instead of failing fast.

// tryLock opens the lock file without taking a cross-process lock.
func tryLock(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	return f, nil
}

// releaseLock closes the lock file.
func releaseLock(f *os.File) {
	if f == nil {
		return
	}
	_ = f.Close()
}
