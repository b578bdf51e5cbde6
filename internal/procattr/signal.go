package procattr

import (
	"os"
	"syscall"
)

// SignalGroup delivers sig to the whole process group of p. The
// negative pid form reaches grandchildren the CLI may have spawned.
func SignalGroup(p *os.Process, sig syscall.Signal) error {
	if p == nil {
		return nil
	}
	return syscall.Kill(-p.Pid, sig)
}

// KillGroup force-kills the whole process group of p.
func KillGroup(p *os.Process) error {
	return SignalGroup(p, syscall.SIGKILL)
}
