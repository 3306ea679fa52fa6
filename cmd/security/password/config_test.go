package password

import "testing"

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	def := DefaultConfig()
	if cfg.Params != def.Params || cfg.Policy != def.Policy {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("AUTHD_PASSWORD_MIN_LEN", "12")
	t.Setenv("AUTHD_PASSWORD_MAX_LEN", "64")
	t.Setenv("AUTHD_PASSWORD_REJECT_VERY_WEAK", "true")
	t.Setenv("AUTHD_ARGON2_MEMORY_KIB", "16384")
	t.Setenv("AUTHD_ARGON2_ITERATIONS", "2")
	t.Setenv("AUTHD_ARGON2_PARALLELISM", "2")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Policy.MinLength != 12 || cfg.Policy.MaxLength != 64 || !cfg.Policy.RejectVeryWeak {
		t.Fatalf("policy not applied: %+v", cfg.Policy)
	}
	if cfg.Params.MemoryKiB != 16384 || cfg.Params.Iterations != 2 || cfg.Params.Parallelism != 2 {
		t.Fatalf("params not applied: %+v", cfg.Params)
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		key, val string
	}{
		{"AUTHD_PASSWORD_MIN_LEN", "zero"},
		{"AUTHD_ARGON2_MEMORY_KIB", "1"},
		{"AUTHD_ARGON2_PARALLELISM", "300"},
		{"AUTHD_PASSWORD_REJECT_VERY_WEAK", "maybe"},
	}
	for _, tc := range tests {
		t.Run(tc.key, func(t *testing.T) {
			t.Setenv(tc.key, tc.val)
			if _, err := FromEnv(); err == nil {
				t.Fatalf("expected error for %s=%s", tc.key, tc.val)
			}
		})
	}
}

func TestFromEnv_MinAboveMax(t *testing.T) {
	t.Setenv("AUTHD_PASSWORD_MIN_LEN", "50")
	t.Setenv("AUTHD_PASSWORD_MAX_LEN", "20")
	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error")
	}
}
