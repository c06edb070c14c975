package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DefaultTokenTTLHours is used when JWT_EXPIRATION_HOURS is unset.
const DefaultTokenTTLHours = 24 * 30

// AuthConfig holds the settings for API bearer tokens.
type AuthConfig struct {
	Secret   string
	TokenTTL time.Duration
	Issuer   string
}

// NewAuthConfig reads JWT_SECRET and JWT_EXPIRATION_HOURS. It returns nil
// without error when JWT_SECRET is unset, meaning the API runs without
// authentication.
func NewAuthConfig() (*AuthConfig, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, nil
	}

	hours := DefaultTokenTTLHours
	if v := os.Getenv("JWT_EXPIRATION_HOURS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid JWT_EXPIRATION_HOURS: %v", err)
		}
		hours = n
	}

	cfg := &AuthConfig{
		Secret:   secret,
		TokenTTL: time.Duration(hours) * time.Hour,
		Issuer:   "job-radar",
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// normalize validates the configuration.
func (c *AuthConfig) normalize() error {
	if len(c.Secret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	if c.TokenTTL < time.Hour {
		return fmt.Errorf("JWT_EXPIRATION_HOURS must be at least 1 hour, got: %s", c.TokenTTL)
	}
	return nil
}
