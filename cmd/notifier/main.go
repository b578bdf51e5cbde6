// Command notifier watches an AI coding agent session and posts a
// Discord message when it needs attention: idle and waiting for input,
// blocked on a permission prompt, or terminated.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Superl3/OpenCode-Discord-Notifier/config"
	"github.com/Superl3/OpenCode-Discord-Notifier/engine"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "notifier",
	Short: "Discord notifications for unattended coding agent sessions",
	Long: `notifier watches an OpenCode-style coding agent and sends a Discord
message when the session goes idle, blocks on a permission prompt, or
terminates, so long-running work can be left unattended.

Observation modes:
  run   wrap the agent CLI and watch its output lines
  feed  consume structured plugin events from stdin`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Config file path (default: ~/.config/opencode-discord-notifier/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(feedCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger creates a structured logger with the configured verbosity.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPath()
}

func loadConfig() (*config.Config, error) {
	return config.Load(resolveConfigPath())
}

// workspaceName labels notifications with the directory the notifier
// was started from.
func workspaceName() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Base(cwd)
}

// setupContext cancels on the first SIGINT/SIGTERM; a second signal
// forces exit.
func setupContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(os.Stderr, "\nreceived %v, shutting down\n", sig)
		cancel()
		<-sigCh
		fmt.Fprintln(os.Stderr, "forcing exit")
		os.Exit(1)
	}()

	return ctx, cancel
}

// engineHolder lets config reloads swap the engine while the event
// feeders keep a stable handle. A reload restarts in-memory session
// state; thread routes persist on disk and survive the swap.
type engineHolder struct {
	mu   sync.Mutex
	opts []engine.Option
	eng  *engine.Engine
}

func newEngineHolder(cfg *config.Config, log *slog.Logger) *engineHolder {
	opts := []engine.Option{
		engine.WithLogger(log),
		engine.WithWorkspace(workspaceName()),
	}
	return &engineHolder{opts: opts, eng: engine.New(cfg, opts...)}
}

func (h *engineHolder) get() *engine.Engine {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.eng
}

func (h *engineHolder) replace(cfg *config.Config) {
	next := engine.New(cfg, h.opts...)
	h.mu.Lock()
	old := h.eng
	h.eng = next
	h.mu.Unlock()
	if old != nil {
		old.Close()
	}
}

func (h *engineHolder) close() {
	h.mu.Lock()
	old := h.eng
	h.eng = nil
	h.mu.Unlock()
	if old != nil {
		old.Close()
	}
}

func watchConfig(ctx context.Context, holder *engineHolder, log *slog.Logger) {
	err := config.Watch(ctx, resolveConfigPath(), log, func(cfg *config.Config) {
		holder.replace(cfg)
	})
	if err != nil && ctx.Err() == nil {
		log.Warn("config watch stopped", "error", err)
	}
}
