package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/markpress/markpress/internal/client"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync round against the blog server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cmd.SilenceUsage = true

		c, err := client.New(cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		setupFileLogging(c.Workspace().LogsDir)

		result, err := c.Sync(cmd.Context())
		if err != nil {
			return err
		}

		result.Print(os.Stdout)
		if code := result.ExitCode(); code != 0 {
			os.Exit(code)
		}
		return nil
	},
}
