//go:build windows

package status

import "os"

// processExists relies on FindProcess opening a handle, which only succeeds
// for a live process on Windows.
func processExists(pid int) bool {
	if pid == os.Getpid() {
		return true
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	process.Release()
	return true
}
