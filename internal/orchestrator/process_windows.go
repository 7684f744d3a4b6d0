//go:build windows

package orchestrator

import (
	"os"
	"syscall"
)

// processAlive checks if a process is still running on Windows.
func processAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	defer p.Release()
	return p.Signal(syscall.Signal(0)) == nil
}
