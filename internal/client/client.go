// Package client assembles the pieces of the CLI client: workspace,
// journal, server SDK and the sync engine.
package client

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/markpress/markpress/internal/client/config"
	"github.com/markpress/markpress/internal/client/sdk"
	clientsync "github.com/markpress/markpress/internal/client/sync"
	"github.com/markpress/markpress/internal/client/workspace"
)

type Client struct {
	config  *config.Config
	ws      *workspace.Workspace
	journal *clientsync.Journal
	api     *sdk.SDK
}

func New(cfg *config.Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("client config: %w", err)
	}

	ws, err := workspace.NewWorkspace(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	api, err := sdk.New(&sdk.Config{
		BaseURL: cfg.ServerURL,
		Token:   cfg.Token,
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		config:  cfg,
		ws:      ws,
		journal: clientsync.NewJournal(ws.JournalPath),
		api:     api,
	}, nil
}

// Workspace returns the client's workspace.
func (c *Client) Workspace() *workspace.Workspace {
	return c.ws
}

// Sync locks the workspace and runs one sync round.
func (c *Client) Sync(ctx context.Context) (*clientsync.Result, error) {
	if err := c.ws.Setup(); err != nil {
		return nil, err
	}
	defer func() {
		if err := c.ws.Unlock(); err != nil {
			slog.Error("unlock workspace", "error", err)
		}
	}()

	if err := c.journal.Open(); err != nil {
		return nil, err
	}
	defer c.journal.Close()

	engine := clientsync.NewEngine(&clientsync.Config{
		Workspace:    c.ws,
		SDK:          c.api,
		Journal:      c.journal,
		Patterns:     c.config.Patterns,
		MaxDownloads: c.config.MaxDownloads,
	})
	return engine.Run(ctx)
}

// Close releases the SDK's connections.
func (c *Client) Close() {
	c.api.Close()
}
