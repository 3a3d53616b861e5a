package server

import (
	"fmt"

	"github.com/markpress/markpress/internal/gitstore"
	"github.com/markpress/markpress/internal/merge"
	"github.com/markpress/markpress/internal/render"
	"github.com/markpress/markpress/internal/server/auth"
	syncsvc "github.com/markpress/markpress/internal/server/sync"
)

type Services struct {
	Store  *gitstore.Store
	Sync   *syncsvc.Service
	Auth   *auth.AuthService
	Render *render.Renderer
}

func NewServices(config *Config) (*Services, error) {
	store, err := gitstore.Open(&gitstore.Config{
		Root:         config.Repo.Dir,
		GitBin:       config.Repo.GitBin,
		MergeTimeout: config.Repo.MergeTimeout,
		Author: gitstore.Signature{
			Name:  config.Repo.AuthorName,
			Email: config.Repo.AuthorEmail,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open post repository: %w", err)
	}

	// the store doubles as the line merge tool
	engine := merge.NewEngine(store)

	return &Services{
		Store:  store,
		Sync:   syncsvc.NewService(store, engine),
		Auth:   auth.NewAuthService(&config.Auth),
		Render: render.New(),
	}, nil
}
