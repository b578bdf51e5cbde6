package main

import (
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Superl3/OpenCode-Discord-Notifier/internal/ndjson"
	"github.com/Superl3/OpenCode-Discord-Notifier/protocol"
)

var (
	feedSession     string
	feedWatchConfig bool
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Consume plugin NDJSON events from stdin",
	Long: `Feed reads one JSON event per line from stdin, the way the runtime
plugin emits them, and drives notifications from the structured stream.
Malformed lines are skipped; the stream keeps flowing.`,
	Example: `  opencode --plugin-events | notifier feed --watch-config`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := setupContext()
		defer cancel()

		holder := newEngineHolder(cfg, log)
		defer holder.close()
		if feedWatchConfig {
			go watchConfig(ctx, holder, log)
		}

		lines := make(chan []byte, 256)
		readErr := make(chan error, 1)
		go func() {
			defer close(lines)
			r := ndjson.NewReader(os.Stdin)
			for {
				line, err := r.ReadLine()
				if err != nil {
					if !errors.Is(err, io.EOF) {
						readErr <- err
					}
					return
				}
				select {
				case lines <- line:
				case <-ctx.Done():
					return
				}
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					select {
					case err := <-readErr:
						return err
					default:
						return nil
					}
				}
				ev, err := protocol.ParseEvent(line)
				if err != nil {
					log.Debug("skipping malformed event", "error", err)
					continue
				}
				ev = protocol.WithFallbackSession(ev, feedSession)
				holder.get().HandleEvent(ctx, ev)
			}
		}
	},
}

func init() {
	feedCmd.Flags().StringVar(&feedSession, "session", "", "Fallback session id for events that carry none")
	feedCmd.Flags().BoolVar(&feedWatchConfig, "watch-config", false, "Reload the config file when it changes")
}
