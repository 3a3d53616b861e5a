// Package sdk is the HTTP client for the MarkPress sync API.
package sdk

import (
	"time"

	"github.com/imroc/req/v3"
)

type Config struct {
	BaseURL string
	Token   string
}

func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrNoServerURL
	}
	return nil
}

// SDK talks to one MarkPress server.
type SDK struct {
	client *req.Client
	Sync   *SyncAPI
}

func New(config *Config) (*SDK, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client := req.C().
		SetBaseURL(config.BaseURL).
		SetCommonRetryCount(3).
		SetCommonRetryFixedInterval(1 * time.Second).
		SetUserAgent(userAgent).
		SetCommonHeader(HeaderVersion, userAgent).
		SetCommonErrorResult(&APIError{}).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)

	if config.Token != "" {
		client.SetCommonBearerAuthToken(config.Token)
	}

	return &SDK{
		client: client,
		Sync:   newSyncAPI(client),
	}, nil
}

// Close releases idle connections.
func (s *SDK) Close() {
	s.client.CloseIdleConnections()
}
