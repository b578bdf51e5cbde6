//go:build !linux

// Package procattr configures watched subprocesses so they cannot
// outlive the notifier.
package procattr

import (
	"os/exec"
	"syscall"
)

// Set puts the child in its own process group. Parent-death signaling
// is Linux-only; elsewhere the group still allows kill -<pgid> cleanup.
func Set(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}
