package session

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const (
	testAccessSecret  = "access-secret-0123456789abcdef0123456789"
	testRefreshSecret = "refresh-secret-0123456789abcdef012345678"
)

func setSecrets(t *testing.T) {
	t.Helper()
	t.Setenv("AUTHD_ACCESS_TOKEN_SECRET", testAccessSecret)
	t.Setenv("AUTHD_REFRESH_TOKEN_SECRET", testRefreshSecret)
}

func TestLoadConfigFromEnv_MissingSecrets(t *testing.T) {
	t.Setenv("AUTHD_ACCESS_TOKEN_SECRET", "")
	t.Setenv("AUTHD_REFRESH_TOKEN_SECRET", testRefreshSecret)
	if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig on missing access secret, got %v", err)
	}

	t.Setenv("AUTHD_ACCESS_TOKEN_SECRET", testAccessSecret)
	t.Setenv("AUTHD_REFRESH_TOKEN_SECRET", "")
	if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig on missing refresh secret, got %v", err)
	}
}

func TestLoadConfigFromEnv_ShortOrSharedSecret(t *testing.T) {
	t.Setenv("AUTHD_ACCESS_TOKEN_SECRET", "short")
	t.Setenv("AUTHD_REFRESH_TOKEN_SECRET", testRefreshSecret)
	if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig on short secret, got %v", err)
	}

	t.Setenv("AUTHD_ACCESS_TOKEN_SECRET", testRefreshSecret)
	if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig on shared secret, got %v", err)
	}
}

func TestLoadConfigFromEnv_InvalidDurations(t *testing.T) {
	setSecrets(t)

	for _, tc := range []struct{ key, val string }{
		{"AUTHD_ACCESS_TTL", "-5m"},
		{"AUTHD_ACCESS_TTL", "soon"},
		{"AUTHD_REFRESH_TTL", "0s"},
	} {
		t.Run(tc.key+"="+tc.val, func(t *testing.T) {
			t.Setenv(tc.key, tc.val)
			if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
		})
	}
}

func TestLoadConfigFromEnv_AccessMustBeShorter(t *testing.T) {
	setSecrets(t)
	t.Setenv("AUTHD_ACCESS_TTL", "48h")
	t.Setenv("AUTHD_REFRESH_TTL", "24h")
	if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestLoadConfigFromEnv_Valid(t *testing.T) {
	setSecrets(t)
	t.Setenv("AUTHD_TOKEN_ISSUER", "authd-test")
	t.Setenv("AUTHD_TOKEN_AUDIENCE", "api-test")
	t.Setenv("AUTHD_ACCESS_TTL", "10m")
	t.Setenv("AUTHD_REFRESH_TTL", "48h")
	t.Setenv("AUTHD_DEFAULT_ROLE", "demo_authenticated")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Issuer != "authd-test" || cfg.Audience != "api-test" {
		t.Fatalf("markers mismatch: %q %q", cfg.Issuer, cfg.Audience)
	}
	if cfg.AccessTTL != 10*time.Minute {
		t.Fatalf("access ttl mismatch: %v", cfg.AccessTTL)
	}
	if cfg.RefreshTTL != 48*time.Hour {
		t.Fatalf("refresh ttl mismatch: %v", cfg.RefreshTTL)
	}
	if cfg.DefaultRole != "demo_authenticated" {
		t.Fatalf("role mismatch: %q", cfg.DefaultRole)
	}
	if string(cfg.AccessSecret) != testAccessSecret || !strings.HasPrefix(string(cfg.RefreshSecret), "refresh-") {
		t.Fatalf("secrets not loaded")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.AccessTTL != 15*time.Minute || cfg.RefreshTTL != 7*24*time.Hour {
		t.Fatalf("unexpected ttl defaults: %+v", cfg)
	}
	if cfg.Issuer != "postgraphile" || cfg.Audience != "postgraphile" {
		t.Fatalf("unexpected markers: %+v", cfg)
	}
	if err := cfg.Validate(); !errors.Is(err, ErrConfig) {
		t.Fatalf("defaults without secrets must not validate: %v", err)
	}
}
