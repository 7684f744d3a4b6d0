//go:build !windows

package orchestrator

import (
	"errors"
	"syscall"
)

// processAlive checks if a process is still running. EPERM means it exists
// but belongs to another user.
func processAlive(pid int) bool {
	err := syscall.Kill(pid, syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
