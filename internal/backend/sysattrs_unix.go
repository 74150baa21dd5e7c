//go:build !windows

package backend

import (
	"errors"
	"os/exec"
	"syscall"
)

// configureSysProcAttr places the backend in its own process group so a
// termination request reaches workers it forks (uvicorn reloaders etc).
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminate sends SIGTERM to the backend's process group, falling back to
// the single pid when the group is already gone.
func terminate(pid int) error {
	if pid <= 0 {
		return nil
	}
	err := syscall.Kill(-pid, syscall.SIGTERM)
	if errors.Is(err, syscall.ESRCH) {
		return syscall.Kill(pid, syscall.SIGTERM)
	}
	return err
}
