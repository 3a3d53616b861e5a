package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/markpress/markpress/internal/server/auth"
)

const DefaultAddr = "127.0.0.1:8080"

type Config struct {
	HTTP HTTPConfig
	Repo RepoConfig
	Auth auth.Config
}

type HTTPConfig struct {
	Addr     string
	CertFile string
	KeyFile  string
	// RateLimit is a ulule/limiter formatted rate, e.g. "120-M".
	RateLimit string
}

// RepoConfig locates the git repository holding the post tree.
type RepoConfig struct {
	Dir          string
	GitBin       string
	MergeTimeout time.Duration
	AuthorName   string
	AuthorEmail  string
}

func (c *Config) Validate() error {
	if c.Repo.Dir == "" {
		return errors.New("repo dir is required")
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultAddr
	}
	if c.HTTP.RateLimit == "" {
		c.HTTP.RateLimit = "300-M"
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth config: %w", err)
	}
	return nil
}
