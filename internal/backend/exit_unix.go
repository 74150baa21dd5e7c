//go:build !windows

package backend

import (
	"os"
	"syscall"
)

// signalOf returns the name of the signal that terminated the process, if any.
func signalOf(ps *os.ProcessState) string {
	ws, ok := ps.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return ""
	}
	return ws.Signal().String()
}
