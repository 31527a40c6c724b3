// Package config provides JWT configuration functionality.
package config

import (
	"fmt"
	"time"
)

// JWTConfig holds configuration for JWT token generation and validation.
type JWTConfig struct {
	Secret   string
	TokenTTL time.Duration
}

// NewJWTConfig creates a JWT configuration from the auth section.
// The secret is required; the token lifetime defaults to two hours.
func NewJWTConfig(auth AuthConfig) (*JWTConfig, error) {
	config := &JWTConfig{
		Secret:   auth.JWTSecret,
		TokenTTL: auth.TokenTTL,
	}
	if config.TokenTTL == 0 {
		config.TokenTTL = 2 * time.Hour
	}

	if err := config.normalize(); err != nil {
		return nil, err
	}

	return config, nil
}

// normalize validates the configuration.
func (c *JWTConfig) normalize() error {
	if c.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required but not set")
	}
	if c.TokenTTL < time.Minute {
		return fmt.Errorf("token lifetime must be at least one minute, got: %s", c.TokenTTL)
	}
	return nil
}
