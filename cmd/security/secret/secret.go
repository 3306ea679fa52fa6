package secret

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

// MinBytes is the shortest HS256 secret accepted by FromEnv callers by default.
const MinBytes = 32

// FromEnv reads key from the environment and enforces minBytes.
func FromEnv(key string, minBytes int) ([]byte, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil, fmt.Errorf("%s: %w", key, ErrSecretMissing)
	}
	if err := Check([]byte(raw), minBytes); err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return []byte(raw), nil
}

// Check validates an already loaded secret.
func Check(b []byte, minBytes int) error {
	if len(b) == 0 {
		return ErrSecretMissing
	}
	if minBytes > 0 && len(b) < minBytes {
		return ErrSecretTooShort
	}
	return nil
}

// Distinct fails with ErrSecretReused when a and b are equal.
func Distinct(a, b []byte) error {
	if len(a) == len(b) && subtle.ConstantTimeCompare(a, b) == 1 {
		return ErrSecretReused
	}
	return nil
}

// Fingerprint identifies a secret in logs: the first 8 bytes of SHA-256, hex.
func Fingerprint(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:8])
}

// Digest tags a token for audit records without exposing it.
// The tag is HMAC-SHA256(token, key) truncated to 16 hex chars.
func Digest(token string, key []byte) string {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(token))
	return hex.EncodeToString(m.Sum(nil)[:8])
}
