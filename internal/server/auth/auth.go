// Package auth issues and validates the admin tokens guarding the sync
// API. MarkPress serves a single author, so there is exactly one level of
// privilege: every sync endpoint requires an admin-scoped token.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrNotAdmin     = errors.New("token lacks admin privilege")
)

type Config struct {
	Enabled     bool          `mapstructure:"enabled"`
	TokenIssuer string        `mapstructure:"token_issuer"`
	TokenSecret string        `mapstructure:"token_secret"`
	TokenExpiry time.Duration `mapstructure:"token_expiry"`
}

func (c *Config) Validate() error {
	if c.Enabled {
		if c.TokenIssuer == "" {
			return fmt.Errorf("auth `token_issuer` is required when auth is enabled")
		}
		if c.TokenSecret == "" {
			return fmt.Errorf("auth `token_secret` is required when auth is enabled")
		}
	}
	return nil
}

type Claims struct {
	Admin bool `json:"admin"`
	jwt.RegisteredClaims
}

type AuthService struct {
	config *Config
}

func NewAuthService(config *Config) *AuthService {
	return &AuthService{config: config}
}

func (s *AuthService) IsEnabled() bool {
	return s.config.Enabled
}

// GenerateAdminToken mints an admin access token for the given subject.
// An unset expiry defaults to 24h; a negative expiry yields an
// already-expired token.
func (s *AuthService) GenerateAdminToken(subject string) (string, error) {
	expiry := s.config.TokenExpiry
	if expiry == 0 {
		expiry = 24 * time.Hour
	}

	claims := Claims{
		Admin: true,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.config.TokenIssuer,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.TokenSecret))
}

// ValidateAdminToken parses the token and requires the admin claim. Every
// sync endpoint goes through this.
func (s *AuthService) ValidateAdminToken(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := ParseClaims(tokenString, s.config.TokenSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !claims.Admin {
		return nil, ErrNotAdmin
	}
	return claims, nil
}

func ParseClaims(tokenString, jwtSecret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
