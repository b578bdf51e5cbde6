package procattr

import (
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetPutsChildInOwnGroup(t *testing.T) {
	t.Parallel()
	cmd := exec.Command("echo", "test")
	require.Nil(t, cmd.SysProcAttr)

	Set(cmd)

	require.NotNil(t, cmd.SysProcAttr)
	assert.True(t, cmd.SysProcAttr.Setpgid)
}

func TestSignalGroupNilProcess(t *testing.T) {
	t.Parallel()
	assert.NoError(t, SignalGroup(nil, syscall.SIGTERM))
	assert.NoError(t, KillGroup(nil))
}

func TestSignalGroupStopsRunningProcess(t *testing.T) {
	t.Parallel()
	cmd := exec.Command("sleep", "60")
	Set(cmd)
	require.NoError(t, cmd.Start())

	require.NoError(t, SignalGroup(cmd.Process, syscall.SIGTERM))
	waitOrFail(t, cmd)
}

func TestKillGroupReapsTermIgnoringProcess(t *testing.T) {
	t.Parallel()
	cmd := exec.Command("sh", "-c", `trap "" TERM; sleep 60`)
	Set(cmd)
	require.NoError(t, cmd.Start())

	// SIGTERM is ignored; only the group kill can take it down.
	_ = SignalGroup(cmd.Process, syscall.SIGTERM)
	require.NoError(t, KillGroup(cmd.Process))
	waitOrFail(t, cmd)
}

func waitOrFail(t *testing.T, cmd *exec.Cmd) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		_ = KillGroup(cmd.Process)
		t.Fatal("process group did not exit")
	}
}
