package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Superl3/OpenCode-Discord-Notifier/compose"
	"github.com/Superl3/OpenCode-Discord-Notifier/config"
	"github.com/Superl3/OpenCode-Discord-Notifier/discord"
)

var checkSend bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the config and optionally send a test notification",
	Long: `Check loads the config file, prints the effective settings, and reports
whether notifications can be delivered. With --send it posts a test
message to every configured target.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		path := resolveConfigPath()
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}

		redacted := *cfg
		if !config.IsPlaceholder(redacted.Discord.BotToken) {
			redacted.Discord.BotToken = "(set)"
		}
		out, err := yaml.Marshal(&redacted)
		if err != nil {
			return err
		}
		fmt.Printf("config: %s\n\n%s\n", path, out)

		if cfg.Usable() {
			fmt.Println("status: ready to deliver notifications")
		} else {
			fmt.Println("status: not usable yet (set discord.botToken and at least one target)")
		}

		if !checkSend {
			return nil
		}
		if !cfg.Usable() {
			return errors.New("cannot send test notification: config is not usable")
		}

		client := discord.NewClient(cfg.Discord.BotToken, discord.WithClientLogger(log))
		content := compose.Build(compose.Input{
			Title:     cfg.Message.Title,
			EnvTag:    cfg.Environment.EnvName(),
			Workspace: workspaceName(),
			Mode:      compose.ModeRaw,
			Body:      "Test notification. Delivery is working.",
			Timestamp: time.Now(),
		})

		for _, target := range cfg.Discord.Targets {
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Discord.Timeout())
			channelID := target.ID
			if target.Type == "user" {
				channelID, err = client.ResolveDmChannel(ctx, target.ID)
				if err != nil {
					cancel()
					return fmt.Errorf("resolve DM channel for user %s: %w", target.ID, err)
				}
			}
			_, err = client.Post(ctx, channelID, content, false)
			cancel()
			if err != nil {
				return fmt.Errorf("post to %s %s: %w", target.Type, target.ID, err)
			}
			fmt.Printf("sent test notification to %s %s\n", target.Type, target.ID)
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().BoolVar(&checkSend, "send", false, "Send a test notification to every target")
}
