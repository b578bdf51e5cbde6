//go:build linux

// Package procattr configures watched subprocesses so they cannot
// outlive the notifier.
package procattr

import (
	"os/exec"
	"syscall"
)

// Set puts the child in its own process group and arranges for it to
// receive SIGTERM if the notifier dies without cleanup (OOM kill,
// SIGKILL).
func Set(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGTERM,
	}
}
