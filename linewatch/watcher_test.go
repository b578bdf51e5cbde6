package linewatch

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Superl3/OpenCode-Discord-Notifier/protocol"
)

type lineRecorder struct {
	mu    sync.Mutex
	lines []protocol.LineEvent
}

func (r *lineRecorder) emit(ev protocol.LineEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, ev)
}

func (r *lineRecorder) bySource(source string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.lines {
		if ev.Source == source {
			out = append(out, ev.Line)
		}
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunForwardsAndMirrorsOutput(t *testing.T) {
	rec := &lineRecorder{}
	var outBuf, errBuf bytes.Buffer

	err := Run(context.Background(), Config{
		SessionID: "cli-test",
		Command:   []string{"sh", "-c", "echo one; echo two; echo oops >&2"},
		Stdout:    &outBuf,
		Stderr:    &errBuf,
		Log:       discardLogger(),
	}, rec.emit)
	require.NoError(t, err)

	assert.Equal(t, []string{"one", "two"}, rec.bySource("stdout"))
	assert.Equal(t, []string{"oops"}, rec.bySource("stderr"))
	assert.Equal(t, "one\ntwo\n", outBuf.String())
	assert.Equal(t, "oops\n", errBuf.String())
}

func TestRunSynthesizesFailureLineOnNonZeroExit(t *testing.T) {
	rec := &lineRecorder{}

	err := Run(context.Background(), Config{
		SessionID: "cli-test",
		Command:   []string{"sh", "-c", "exit 3"},
		Stdout:    io.Discard,
		Stderr:    io.Discard,
		Log:       discardLogger(),
	}, rec.emit)
	require.Error(t, err)

	lines := rec.bySource("stderr")
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[len(lines)-1], "exited with code 3")
}

func TestRunCancellationStopsProcessQuietly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rec := &lineRecorder{}

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Config{
			SessionID:    "cli-test",
			Command:      []string{"sleep", "30"},
			GraceTimeout: time.Second,
			Stdout:       io.Discard,
			Stderr:       io.Discard,
			Log:          discardLogger(),
		}, rec.emit)
	}()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("process did not stop after cancellation")
	}
}

func TestRunEscalatesToGroupKillWhenTermIgnored(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rec := &lineRecorder{}

	// The trailing echo keeps the shell alive as the group leader, so
	// sleep runs as a grandchild that would survive a direct kill.
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Config{
			SessionID:    "cli-test",
			Command:      []string{"sh", "-c", `trap "" TERM; echo $$; sleep 30; echo done`},
			GraceTimeout: 100 * time.Millisecond,
			Stdout:       io.Discard,
			Stderr:       io.Discard,
			Log:          discardLogger(),
		}, rec.emit)
	}()

	// The pid line doubles as the signal that the trap is installed.
	var pgid int
	require.Eventually(t, func() bool {
		lines := rec.bySource("stdout")
		if len(lines) == 0 {
			return false
		}
		n, err := strconv.Atoi(strings.TrimSpace(lines[0]))
		pgid = n
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("TERM-ignoring process was not force-killed")
	}

	// The whole group is gone, the grandchild sleep included.
	require.Eventually(t, func() bool {
		return syscall.Kill(-pgid, 0) == syscall.ESRCH
	}, 2*time.Second, 20*time.Millisecond)
}

func TestRunRejectsEmptyCommand(t *testing.T) {
	err := Run(context.Background(), Config{}, func(protocol.LineEvent) {})
	assert.Error(t, err)
}
