package main

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Superl3/OpenCode-Discord-Notifier/linewatch"
	"github.com/Superl3/OpenCode-Discord-Notifier/protocol"
)

var (
	runSession     string
	runWatchConfig bool
	runGrace       time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run -- <command> [args...]",
	Short: "Wrap an agent CLI and watch its output",
	Long: `Run launches the given command, mirrors its output, and watches every
line for completion and input-required patterns. The wrapped process
stays fully interactive; a non-zero exit is reported as a failure.`,
	Example: `  notifier run -- opencode
  notifier run --session nightly -- make e2e`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := setupContext()
		defer cancel()

		sessionID := runSession
		if sessionID == "" {
			sessionID = "cli-" + uuid.NewString()[:8]
		}

		holder := newEngineHolder(cfg, log)
		defer holder.close()
		if runWatchConfig {
			go watchConfig(ctx, holder, log)
		}

		// Funnel both output streams into one consumer so events reach
		// the engine in a single sequence.
		events := make(chan protocol.Event, 256)
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ev := range events {
				holder.get().HandleEvent(ctx, ev)
			}
		}()

		err = linewatch.Run(ctx, linewatch.Config{
			SessionID:    sessionID,
			Command:      args,
			GraceTimeout: runGrace,
			Log:          log,
		}, func(ev protocol.LineEvent) { events <- ev })

		close(events)
		wg.Wait()
		holder.close()
		return err
	},
}

func init() {
	runCmd.Flags().StringVar(&runSession, "session", "", "Session id for emitted events (default: generated)")
	runCmd.Flags().BoolVar(&runWatchConfig, "watch-config", false, "Reload the config file when it changes")
	runCmd.Flags().DurationVar(&runGrace, "grace-timeout", 5*time.Second, "SIGTERM to SIGKILL window on shutdown")
}
