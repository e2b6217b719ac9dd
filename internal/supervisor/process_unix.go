//go:build !windows

package supervisor

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// configureProcAttr puts the connector in its own process group so a stop
// can take out the connector and any children it forked.
func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

// terminateProcess asks the process group to exit cooperatively.
func terminateProcess(pid int) error {
	return signalGroup(pid, syscall.SIGTERM)
}

// killProcess forcibly kills the process group.
func killProcess(pid int) error {
	return signalGroup(pid, syscall.SIGKILL)
}

// signalGroup signals the entire process group; if that fails (for example
// an adopted pid that is not a group leader), it falls back to the
// individual process.
func signalGroup(pid int, sig syscall.Signal) error {
	if err := syscall.Kill(-pid, sig); err != nil {
		if err2 := syscall.Kill(pid, sig); err2 != nil {
			return fmt.Errorf("failed to signal process group -%d: %v, also failed to signal process %d: %v", pid, err, pid, err2)
		}
	}
	return nil
}

func signalProcess(pid int, sig os.Signal) error {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return fmt.Errorf("unsupported signal type %T", sig)
	}
	return syscall.Kill(pid, s)
}

// isAlive reports whether a process with the given pid exists. Signal 0
// performs the existence check without delivering anything; EPERM means the
// process exists but belongs to someone else.
func isAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}
