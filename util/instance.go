package util

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ErrAlreadyRunning means another live process holds the instance lock.
var ErrAlreadyRunning = errors.New("another instance is already running")

// InstanceLock is a pid file that keeps a second process away from the same data
// directory. A lock left behind by a dead process is taken over.
type InstanceLock struct {
	path string
	pid  int
}

// AcquireInstanceLock creates the lock file at path holding the current pid.
func AcquireInstanceLock(path string) (*InstanceLock, error) {
	pid := os.Getpid()
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			_, werr := f.WriteString(strconv.Itoa(pid))
			cerr := f.Close()
			if err := errors.Join(werr, cerr); err != nil {
				os.Remove(path)
				return nil, fmt.Errorf("failed to write lock file: %w", err)
			}
			return &InstanceLock{path: path, pid: pid}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("failed to create lock file: %w", err)
		}

		if owner, ok := readLockPid(path); ok && processAlive(owner) {
			return nil, fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, owner)
		}
		// Stale lock.
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to remove stale lock file: %w", err)
		}
	}
	return nil, fmt.Errorf("%w: lock file keeps reappearing", ErrAlreadyRunning)
}

// Release removes the lock file if it still belongs to this process.
func (l *InstanceLock) Release() error {
	if l == nil {
		return nil
	}
	if owner, ok := readLockPid(l.path); ok && owner != l.pid {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func readLockPid(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}
