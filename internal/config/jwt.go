package config

import (
	"fmt"
	"os"
	"strconv"
)

// DefaultAudience is the audience the hosted identity service puts in user access tokens.
const DefaultAudience = "authenticated"

// JWTConfig holds configuration for validating access tokens issued by the hosted identity
// service. Both sides share the project's HMAC secret.
type JWTConfig struct {
	Secret          string
	Audience        string
	ExpirationHours int // lifetime of tokens minted locally, e.g. for tests and tooling
}

// NewJWTConfig reads SUPABASE_JWT_SECRET (or JWT_SECRET), JWT_AUDIENCE (default
// "authenticated") and JWT_EXPIRATION_HOURS (default: 1).
func NewJWTConfig() (*JWTConfig, error) {
	secret := os.Getenv("SUPABASE_JWT_SECRET")
	if secret == "" {
		secret = os.Getenv("JWT_SECRET")
	}
	if secret == "" {
		return nil, fmt.Errorf("SUPABASE_JWT_SECRET is required but not set")
	}

	audience := os.Getenv("JWT_AUDIENCE")
	if audience == "" {
		audience = DefaultAudience
	}

	expirationStr := os.Getenv("JWT_EXPIRATION_HOURS")
	if expirationStr == "" {
		expirationStr = "1"
	}
	expirationHours, err := strconv.Atoi(expirationStr)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_HOURS: %v", err)
	}

	config := &JWTConfig{
		Secret:          secret,
		Audience:        audience,
		ExpirationHours: expirationHours,
	}

	if err := config.normalize(); err != nil {
		return nil, err
	}

	return config, nil
}

// normalize validates the configuration.
func (c *JWTConfig) normalize() error {
	if c.Secret == "" {
		return fmt.Errorf("JWT secret cannot be empty")
	}
	if c.ExpirationHours < 1 {
		return fmt.Errorf("JWT_EXPIRATION_HOURS must be at least 1 hour, got: %d", c.ExpirationHours)
	}
	return nil
}
