// Package linewatch runs a coding agent CLI as a child process and
// turns its output into line events while mirroring everything to the
// caller's terminal. It is the fallback observation mode for runtimes
// without a plugin event stream.
package linewatch

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/Superl3/OpenCode-Discord-Notifier/internal/procattr"
	"github.com/Superl3/OpenCode-Discord-Notifier/protocol"
)

const (
	scanBufSize = 256 * 1024
	maxLineSize = 1024 * 1024

	defaultGrace = 5 * time.Second
)

// Config describes the wrapped CLI invocation.
type Config struct {
	// SessionID labels every emitted line event.
	SessionID string

	// Command is the CLI argv; Command[0] is the executable.
	Command []string

	// GraceTimeout bounds the SIGTERM-to-SIGKILL window on shutdown.
	GraceTimeout time.Duration

	// Mirror destinations. Defaults are the real stdout and stderr so
	// the wrapped CLI stays fully interactive.
	Stdout io.Writer
	Stderr io.Writer

	Log *slog.Logger
}

// Run executes the CLI and calls emit for every output line, stdout
// and stderr separately, until the process exits or ctx is cancelled.
// A non-zero exit synthesizes a final stderr line so downstream
// classification reports the termination. Cancellation itself is not
// an error.
func Run(ctx context.Context, cfg Config, emit func(protocol.LineEvent)) error {
	if len(cfg.Command) == 0 {
		return errors.New("linewatch: empty command")
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	outMirror := cfg.Stdout
	if outMirror == nil {
		outMirror = os.Stdout
	}
	errMirror := cfg.Stderr
	if errMirror == nil {
		errMirror = os.Stderr
	}
	grace := cfg.GraceTimeout
	if grace <= 0 {
		grace = defaultGrace
	}

	cmd := exec.CommandContext(ctx, cfg.Command[0], cfg.Command[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Env = os.Environ()
	procattr.Set(cmd)
	// Shutdown ladder: SIGTERM to the group, grace, SIGKILL to the
	// group. WaitDelay alone would only kill the direct child and let
	// grandchildren linger; it stays as the later backstop that closes
	// the pipes when even the group kill cannot finish the job.
	var groupKill *time.Timer
	cmd.Cancel = func() error {
		groupKill = time.AfterFunc(grace, func() {
			_ = procattr.KillGroup(cmd.Process)
		})
		return procattr.SignalGroup(cmd.Process, syscall.SIGTERM)
	}
	cmd.WaitDelay = 2 * grace

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", cfg.Command[0], err)
	}
	log.Info("watching CLI process", "command", cfg.Command[0], "pid", cmd.Process.Pid)

	var wg sync.WaitGroup
	pump := func(r io.Reader, mirror io.Writer, source string) {
		defer wg.Done()
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, scanBufSize), maxLineSize)
		for sc.Scan() {
			line := sc.Text()
			fmt.Fprintln(mirror, line)
			emit(protocol.LineEvent{
				Session:   cfg.SessionID,
				Line:      line,
				Source:    source,
				Timestamp: time.Now(),
			})
		}
		if err := sc.Err(); err != nil {
			log.Warn("output stream closed abnormally", "source", source, "error", err)
		}
	}
	wg.Add(2)
	go pump(stdout, outMirror, "stdout")
	go pump(stderr, errMirror, "stderr")

	// Pipes must be fully drained before Wait closes them.
	wg.Wait()
	err = cmd.Wait()
	if groupKill != nil {
		groupKill.Stop()
	}

	if ctx.Err() != nil {
		log.Info("CLI stopped", "reason", ctx.Err())
		return nil
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			emit(protocol.LineEvent{
				Session:   cfg.SessionID,
				Line:      exitLine(cfg.Command[0], exitErr),
				Source:    "stderr",
				Timestamp: time.Now(),
			})
		}
		return fmt.Errorf("%s: %w", cfg.Command[0], err)
	}
	return nil
}

// exitLine phrases the abnormal exit so the termination classifier
// lands on the right notice kind.
func exitLine(name string, exitErr *exec.ExitError) string {
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return fmt.Sprintf("interrupted: %s stopped by signal %s", name, status.Signal())
	}
	return fmt.Sprintf("error: %s exited with code %d", name, exitErr.ExitCode())
}
