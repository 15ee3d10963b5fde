//go:build windows

package findings

import "sync"

type storeLock interface {
	Lock() error
	Unlock() error
}

// newFileLock falls back to an in-process mutex; flock is unavailable here.
func newFileLock(string) storeLock {
	return &mutexLock{}
}

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
