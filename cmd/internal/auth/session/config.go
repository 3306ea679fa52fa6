package session

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/onpaws/refresh-token-postgraphile/cmd/security/secret"
)

// Config defines runtime configuration for token issuance.
type Config struct {
	// AccessSecret signs access tokens; RefreshSecret signs refresh tokens.
	// They must differ.
	AccessSecret  []byte
	RefreshSecret []byte

	// Issuer and Audience are stamped into and required of every token.
	Issuer   string
	Audience string

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// DefaultRole is used when the subject store has no role for a subject.
	DefaultRole string
}

// DefaultConfig returns defaults without secrets.
func DefaultConfig() Config {
	return Config{
		Issuer:      "postgraphile",
		Audience:    "postgraphile",
		AccessTTL:   15 * time.Minute,
		RefreshTTL:  7 * 24 * time.Hour,
		DefaultRole: "authenticated",
	}
}

// Validate checks invariants; failures wrap ErrConfig.
func (c Config) Validate() error {
	if err := secret.Check(c.AccessSecret, secret.MinBytes); err != nil {
		return fmt.Errorf("%w: access secret: %v", ErrConfig, err)
	}
	if err := secret.Check(c.RefreshSecret, secret.MinBytes); err != nil {
		return fmt.Errorf("%w: refresh secret: %v", ErrConfig, err)
	}
	if err := secret.Distinct(c.AccessSecret, c.RefreshSecret); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if strings.TrimSpace(c.Issuer) == "" || strings.TrimSpace(c.Audience) == "" {
		return fmt.Errorf("%w: issuer and audience are required", ErrConfig)
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return fmt.Errorf("%w: ttls must be positive", ErrConfig)
	}
	if c.AccessTTL >= c.RefreshTTL {
		return fmt.Errorf("%w: access ttl must be shorter than refresh ttl", ErrConfig)
	}
	if strings.TrimSpace(c.DefaultRole) == "" {
		return fmt.Errorf("%w: default role is required", ErrConfig)
	}
	return nil
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Required:
//   - AUTHD_ACCESS_TOKEN_SECRET
//   - AUTHD_REFRESH_TOKEN_SECRET
//
// Optional:
//   - AUTHD_TOKEN_ISSUER, AUTHD_TOKEN_AUDIENCE
//   - AUTHD_ACCESS_TTL, AUTHD_REFRESH_TTL (Go durations)
//   - AUTHD_DEFAULT_ROLE
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	var err error
	if cfg.AccessSecret, err = secret.FromEnv("AUTHD_ACCESS_TOKEN_SECRET", secret.MinBytes); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if cfg.RefreshSecret, err = secret.FromEnv("AUTHD_REFRESH_TOKEN_SECRET", secret.MinBytes); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	if v := strings.TrimSpace(os.Getenv("AUTHD_TOKEN_ISSUER")); v != "" {
		cfg.Issuer = v
	}
	if v := strings.TrimSpace(os.Getenv("AUTHD_TOKEN_AUDIENCE")); v != "" {
		cfg.Audience = v
	}
	if v := strings.TrimSpace(os.Getenv("AUTHD_DEFAULT_ROLE")); v != "" {
		cfg.DefaultRole = v
	}

	for _, f := range []struct {
		key string
		dst *time.Duration
	}{
		{"AUTHD_ACCESS_TTL", &cfg.AccessTTL},
		{"AUTHD_REFRESH_TTL", &cfg.RefreshTTL},
	} {
		v := strings.TrimSpace(os.Getenv(f.key))
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("%w: %s", ErrConfig, f.key)
		}
		*f.dst = d
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
