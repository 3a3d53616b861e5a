package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigEnv(t *testing.T) {
	repoDir := t.TempDir()
	t.Setenv("MARKPRESS_HTTP_ADDR", ":9090")
	t.Setenv("MARKPRESS_HTTP_RATE_LIMIT", "60-M")
	t.Setenv("MARKPRESS_REPO_DIR", repoDir)
	t.Setenv("MARKPRESS_REPO_MERGE_TIMEOUT", "10s")
	t.Setenv("MARKPRESS_AUTH_ENABLED", "true")
	t.Setenv("MARKPRESS_AUTH_TOKEN_ISSUER", "test-issuer")
	t.Setenv("MARKPRESS_AUTH_TOKEN_SECRET", "test-secret")
	t.Setenv("MARKPRESS_AUTH_TOKEN_EXPIRY", "1h")

	cfg, err := loadConfig(rootCmd)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "60-M", cfg.HTTP.RateLimit)
	assert.Equal(t, repoDir, cfg.Repo.Dir)
	assert.Equal(t, 10*time.Second, cfg.Repo.MergeTimeout)
	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, "test-issuer", cfg.Auth.TokenIssuer)
	assert.Equal(t, "test-secret", cfg.Auth.TokenSecret)
	assert.Equal(t, 1*time.Hour, cfg.Auth.TokenExpiry)
}

func TestLoadConfigYAML(t *testing.T) {
	repoDir := t.TempDir()
	configYAML := `
http:
  addr: "127.0.0.1:9999"

repo:
  dir: ` + repoDir + `
  author_name: publisher
  author_email: publisher@example.com

auth:
  enabled: false
`

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(configYAML), 0o644))

	flag := rootCmd.PersistentFlags().Lookup("config")
	require.NoError(t, flag.Value.Set(configPath))
	flag.Changed = true
	t.Cleanup(func() {
		_ = flag.Value.Set("")
		flag.Changed = false
	})

	cfg, err := loadConfig(rootCmd)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9999", cfg.HTTP.Addr)
	assert.Equal(t, repoDir, cfg.Repo.Dir)
	assert.Equal(t, "publisher", cfg.Repo.AuthorName)
	assert.Equal(t, "publisher@example.com", cfg.Repo.AuthorEmail)
	assert.False(t, cfg.Auth.Enabled)
}

func TestLoadConfigMissingRepoDir(t *testing.T) {
	_, err := loadConfig(rootCmd)
	assert.Error(t, err)
}
