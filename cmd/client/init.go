package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/markpress/markpress/internal/client/config"
	"github.com/markpress/markpress/internal/client/workspace"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the local workspace and save the client config",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cmd.SilenceUsage = true

		ws, err := workspace.NewWorkspace(cfg.DataDir)
		if err != nil {
			return err
		}
		if err := ws.Setup(); err != nil {
			return err
		}
		defer ws.Unlock()

		configPath, _ := cmd.Flags().GetString("config")
		if configPath == "" {
			configPath = config.DefaultConfigPath
		}
		if err := cfg.Save(configPath); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Printf("workspace ready at %s\nconfig saved to %s\n", ws.Root, configPath)
		return nil
	},
}
