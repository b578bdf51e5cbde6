package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Superl3/OpenCode-Discord-Notifier/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Config file utilities",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := resolveConfigPath()
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		fmt.Printf("%s: valid\n", path)
		if !cfg.Usable() {
			fmt.Println("note: notifications stay disabled until discord.botToken and a target are set")
		}
		return nil
	},
}

var configSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema for the config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := config.Schema()
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configSchemaCmd)
}
