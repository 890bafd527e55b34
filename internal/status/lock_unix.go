//go:build !windows

package status

import (
	"os"
	"syscall"
)

// processExists probes the PID with signal 0, which checks existence
// without delivering anything.
func processExists(pid int) bool {
	if pid == os.Getpid() {
		return true
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
