//go:build !windows

package findings

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// storeLock serializes writers of one store file.
type storeLock interface {
	Lock() error
	Unlock() error
}

// fileLock is an advisory flock(2) on <store>.lock, shared with other processes that honor it.
type fileLock struct {
	path string
	file *os.File
	mu   sync.Mutex
}

func newFileLock(storePath string) *fileLock {
	return &fileLock{path: storePath + ".lock"}
}

// Lock blocks until the exclusive lock is held. The lock file is created if needed.
func (fl *fileLock) Lock() error {
	fl.mu.Lock()
	f, err := os.OpenFile(fl.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		fl.mu.Unlock()
		return fmt.Errorf("open lock file: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		_ = f.Close()
		fl.mu.Unlock()
		return fmt.Errorf("flock: %w", err)
	}
	fl.file = f
	return nil
}

func (fl *fileLock) Unlock() error {
	if fl.file == nil {
		return nil
	}
	defer fl.mu.Unlock()

	err := unix.Flock(int(fl.file.Fd()), unix.LOCK_UN)
	closeErr := fl.file.Close()
	fl.file = nil
	if err != nil {
		return fmt.Errorf("funlock: %w", err)
	}
	return closeErr
}

// mutexLock is used for non-OS filesystems, where only this process can see the store.
type mutexLock struct {
	mu sync.Mutex
}

func (ml *mutexLock) Lock() error {
	ml.mu.Lock()
	return nil
}

func (ml *mutexLock) Unlock() error {
	ml.mu.Unlock()
	return nil
}
