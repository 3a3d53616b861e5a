package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/markpress/markpress/internal/client/config"
	"github.com/markpress/markpress/internal/utils"
	"github.com/markpress/markpress/internal/version"
)

var rootCmd = &cobra.Command{
	Use:           "markpress",
	Short:         "MarkPress keeps a local folder of markdown posts in sync with a blog server",
	Version:       version.Detailed(),
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "config file")
	rootCmd.PersistentFlags().StringP("datadir", "d", config.DefaultDataDir, "local post directory")
	rootCmd.PersistentFlags().StringP("server", "s", config.DefaultServerURL, "blog server url")
	rootCmd.PersistentFlags().StringP("token", "t", "", "admin token for the sync api")

	rootCmd.AddCommand(initCmd, syncCmd)
}

func main() {
	setupLogging()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}
}

// loadConfig layers flags over the config file over MARKPRESS_*
// environment variables.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if cmd.Flag("config").Changed {
		configFilePath, _ := cmd.Flags().GetString("config")
		viper.SetConfigFile(configFilePath)
	} else {
		viper.AddConfigPath(filepath.Dir(config.DefaultConfigPath))
		viper.SetConfigName("config")
		viper.SetConfigType("json")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, os.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.BindPFlag("data_dir", cmd.Flags().Lookup("datadir"))
	viper.BindPFlag("server_url", cmd.Flags().Lookup("server"))
	viper.BindPFlag("token", cmd.Flags().Lookup("token"))

	viper.SetEnvPrefix("MARKPRESS")
	viper.AutomaticEnv()

	cfg := &config.Config{
		Path:         viper.ConfigFileUsed(),
		DataDir:      viper.GetString("data_dir"),
		ServerURL:    viper.GetString("server_url"),
		Token:        viper.GetString("token"),
		Patterns:     viper.GetStringSlice("patterns"),
		MaxDownloads: viper.GetInt("max_downloads"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogging() {
	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: "15:04:05",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})
	slog.SetDefault(slog.New(handler))
}

// setupFileLogging adds a per-workspace log file next to the terminal
// handler once the workspace location is known.
func setupFileLogging(logsDir string) {
	if err := utils.EnsureDir(logsDir); err != nil {
		slog.Warn("create log dir", "error", err)
		return
	}

	logPath := filepath.Join(logsDir, "markpress.log")
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		slog.Warn("open log file", "path", logPath, "error", err)
		return
	}

	terminalHandler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: "15:04:05",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})
	fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	slog.SetDefault(slog.New(utils.NewFanoutHandler(terminalHandler, fileHandler)))
}
