// Package config holds the CLI client configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"

	"github.com/markpress/markpress/internal/utils"
)

var (
	home, _           = os.UserHomeDir()
	DefaultConfigPath = filepath.Join(home, ".markpress", "config.json")
	DefaultDataDir    = filepath.Join(home, "MarkPress")
	DefaultServerURL  = "http://localhost:8080"
)

type Config struct {
	DataDir      string   `json:"data_dir"`
	ServerURL    string   `json:"server_url"`
	Token        string   `json:"token,omitempty"`
	Patterns     []string `json:"patterns,omitempty"`
	MaxDownloads int      `json:"max_downloads,omitempty"`
	Path         string   `json:"-"`
}

func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data dir is required")
	}
	if c.ServerURL == "" {
		return errors.New("server url is required")
	}

	resolved, err := utils.ResolvePath(c.DataDir)
	if err != nil {
		return fmt.Errorf("resolve data dir %s: %w", c.DataDir, err)
	}
	c.DataDir = resolved
	return nil
}

func (c *Config) Save(path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.Path = path
	return &cfg, nil
}
