//go:build !windows

package util

import (
	"errors"

	"golang.org/x/sys/unix"
)

// processAlive sends signal 0, which checks existence without delivering anything.
func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
