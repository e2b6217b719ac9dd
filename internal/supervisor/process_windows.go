//go:build windows

package supervisor

import (
	"os"
	"os/exec"
	"syscall"
)

// configureProcAttr is a no-op on Windows; process groups are not used.
func configureProcAttr(cmd *exec.Cmd) {}

// terminateProcess has no cooperative termination signal on Windows, so it
// kills directly.
func terminateProcess(pid int) error {
	return killProcess(pid)
}

func killProcess(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}

func signalProcess(pid int, sig os.Signal) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Signal(sig)
}

func isAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return p.Signal(syscall.Signal(0)) == nil
}
