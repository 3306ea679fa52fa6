package app

import (
	"testing"
	"time"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("AUTHD_TEST_STR", "  value ")
	t.Setenv("AUTHD_TEST_BOOL", "true")
	t.Setenv("AUTHD_TEST_INT", "42")
	t.Setenv("AUTHD_TEST_INT32", "7")
	t.Setenv("AUTHD_TEST_DUR", "90s")

	if got := EnvString("AUTHD_TEST_STR", "def"); got != "value" {
		t.Fatalf("EnvString=%q", got)
	}
	if got := EnvBool("AUTHD_TEST_BOOL", false); !got {
		t.Fatalf("EnvBool=false")
	}
	if got := EnvInt("AUTHD_TEST_INT", 1); got != 42 {
		t.Fatalf("EnvInt=%d", got)
	}
	if got := EnvInt32("AUTHD_TEST_INT32", 1); got != 7 {
		t.Fatalf("EnvInt32=%d", got)
	}
	if got := EnvDuration("AUTHD_TEST_DUR", time.Second); got != 90*time.Second {
		t.Fatalf("EnvDuration=%v", got)
	}
}

func TestEnvHelpers_FallBackOnBadValues(t *testing.T) {
	t.Setenv("AUTHD_TEST_STR", "   ")
	t.Setenv("AUTHD_TEST_BOOL", "maybe")
	t.Setenv("AUTHD_TEST_INT", "-3")
	t.Setenv("AUTHD_TEST_INT32", "99999999999")
	t.Setenv("AUTHD_TEST_DUR", "0s")

	if got := EnvString("AUTHD_TEST_STR", "def"); got != "def" {
		t.Fatalf("EnvString=%q", got)
	}
	if got := EnvBool("AUTHD_TEST_BOOL", true); !got {
		t.Fatalf("EnvBool should keep default")
	}
	if got := EnvInt("AUTHD_TEST_INT", 5); got != 5 {
		t.Fatalf("EnvInt=%d", got)
	}
	if got := EnvInt32("AUTHD_TEST_INT32", 3); got != 3 {
		t.Fatalf("EnvInt32=%d", got)
	}
	if got := EnvDuration("AUTHD_TEST_DUR", time.Minute); got != time.Minute {
		t.Fatalf("EnvDuration=%v", got)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("AUTHD_HTTP_ADDR", "127.0.0.1:9999")
	t.Setenv("AUTHD_DATABASE_URL", "postgres://elevated")
	t.Setenv("AUTHD_AUTH_DATABASE_URL", "")
	t.Setenv("AUTHD_METRICS_ENABLED", "false")
	t.Setenv("AUTHD_DB_PRIVATE_SCHEMA", "app_private")

	cfg := LoadConfig()
	if cfg.HTTPAddr != "127.0.0.1:9999" {
		t.Fatalf("HTTPAddr=%q", cfg.HTTPAddr)
	}
	if cfg.DatabaseURL != "postgres://elevated" || cfg.AuthDatabaseURL != "" {
		t.Fatalf("db urls=%q/%q", cfg.DatabaseURL, cfg.AuthDatabaseURL)
	}
	if cfg.MetricsEnabled {
		t.Fatalf("metrics should be disabled")
	}
	if cfg.DBPublicSchema != "public" || cfg.DBPrivateSchema != "app_private" {
		t.Fatalf("schemas=%q/%q", cfg.DBPublicSchema, cfg.DBPrivateSchema)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("ShutdownTimeout=%v", cfg.ShutdownTimeout)
	}
}
