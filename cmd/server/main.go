package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/markpress/markpress/internal/server"
	"github.com/markpress/markpress/internal/server/auth"
	"github.com/markpress/markpress/internal/version"
)

var rootCmd = &cobra.Command{
	Use:           "markpress-server",
	Short:         "MarkPress blog sync server",
	Version:       version.Detailed(),
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cmd.SilenceUsage = true

		s, err := server.New(cfg)
		if err != nil {
			return err
		}
		defer slog.Info("bye")
		return s.Start(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (yaml or json)")
	rootCmd.Flags().StringP("bind", "b", server.DefaultAddr, "address to bind")
	rootCmd.Flags().StringP("repo", "r", "", "post repository directory")
	rootCmd.Flags().String("cert", "", "tls certificate file")
	rootCmd.Flags().String("key", "", "tls key file")

	rootCmd.AddCommand(tokenCmd)
}

func main() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	slog.SetDefault(slog.New(handler))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig layers flags over the optional config file over
// MARKPRESS_* environment variables, .env included.
func loadConfig(cmd *cobra.Command) (*server.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("skipping .env", "error", err)
	}

	v := viper.New()
	v.SetEnvPrefix("MARKPRESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cmd.Flag("config").Changed {
		configFile, _ := cmd.Flags().GetString("config")
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config read '%s': %w", configFile, err)
		}
	}

	if f := cmd.Flags().Lookup("bind"); f != nil {
		v.BindPFlag("http.addr", f)
	}
	if f := cmd.Flags().Lookup("repo"); f != nil {
		v.BindPFlag("repo.dir", f)
	}
	if f := cmd.Flags().Lookup("cert"); f != nil {
		v.BindPFlag("http.cert_file", f)
	}
	if f := cmd.Flags().Lookup("key"); f != nil {
		v.BindPFlag("http.key_file", f)
	}

	cfg := &server.Config{}
	cfg.HTTP.Addr = v.GetString("http.addr")
	cfg.HTTP.CertFile = v.GetString("http.cert_file")
	cfg.HTTP.KeyFile = v.GetString("http.key_file")
	cfg.HTTP.RateLimit = v.GetString("http.rate_limit")
	cfg.Repo.Dir = v.GetString("repo.dir")
	cfg.Repo.GitBin = v.GetString("repo.git_bin")
	cfg.Repo.MergeTimeout = v.GetDuration("repo.merge_timeout")
	cfg.Repo.AuthorName = v.GetString("repo.author_name")
	cfg.Repo.AuthorEmail = v.GetString("repo.author_email")
	cfg.Auth.Enabled = v.GetBool("auth.enabled")
	cfg.Auth.TokenIssuer = v.GetString("auth.token_issuer")
	cfg.Auth.TokenSecret = v.GetString("auth.token_secret")
	cfg.Auth.TokenExpiry = v.GetDuration("auth.token_expiry")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Generate an admin token for the sync API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Parent())
		if err != nil {
			return err
		}
		cmd.SilenceUsage = true

		if !cfg.Auth.Enabled {
			return errors.New("auth is disabled; enable it and set a token secret first")
		}

		subject, _ := cmd.Flags().GetString("subject")
		expiry, _ := cmd.Flags().GetDuration("expiry")
		if expiry > 0 {
			cfg.Auth.TokenExpiry = expiry
		}

		token, err := auth.NewAuthService(&cfg.Auth).GenerateAdminToken(subject)
		if err != nil {
			return err
		}

		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("subject", "admin", "token subject")
	tokenCmd.Flags().Duration("expiry", 24*time.Hour, "token lifetime")
}
