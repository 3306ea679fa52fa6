package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

const phcVersion = argon2.Version

var b64 = base64.RawStdEncoding

// Hash validates password against the policy and returns a PHC-encoded Argon2id hash.
func (c Config) Hash(password string) (string, error) {
	if err := c.Validate(password); err != nil {
		return "", err
	}

	salt := make([]byte, c.Params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("password salt: %w", err)
	}

	p := c.Params
	key := argon2.IDKey([]byte(password), salt, p.Iterations, p.MemoryKiB, p.Parallelism, p.KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		phcVersion, p.MemoryKiB, p.Iterations, p.Parallelism,
		b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

// Verify reports whether password matches encoded. A malformed or
// oversized hash yields ErrInvalidHash; a mismatch is (false, nil).
func (c Config) Verify(encoded, password string) (bool, error) {
	got, salt, want, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	if !c.acceptable(got) {
		return false, ErrInvalidHash
	}

	key := argon2.IDKey([]byte(password), salt, got.Iterations, got.MemoryKiB, got.Parallelism,
		uint32(len(want))) // #nosec G115 -- length bounded by acceptable().
	return subtle.ConstantTimeCompare(key, want) == 1, nil
}

var (
	dummyOnce sync.Once
	dummyHash string
)

// SpendVerify burns roughly one Verify worth of CPU against a throwaway
// hash. Callers use it on unknown-account paths so lookups and mismatches
// take similar time.
func (c Config) SpendVerify(password string) {
	dummyOnce.Do(func() {
		cfg := c
		cfg.Policy = Policy{MinLength: 1, MaxLength: 1 << 10}
		dummyHash, _ = cfg.Hash("authd-placeholder-secret")
	})
	if dummyHash != "" {
		_, _ = c.Verify(dummyHash, password)
	}
}

// acceptable keeps old, cheaper hashes verifiable while refusing
// attacker-sized parameters.
func (c Config) acceptable(got Argon2idParams) bool {
	lim := c.Params
	switch {
	case got.MemoryKiB > lim.MemoryKiB*2,
		got.Iterations > lim.Iterations*2,
		uint32(got.Parallelism) > uint32(lim.Parallelism)*2,
		got.SaltLength < 8 || got.SaltLength > 64,
		got.KeyLength < 16 || got.KeyLength > 128:
		return false
	}
	return true
}

func parsePHC(encoded string) (Argon2idParams, []byte, []byte, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}
	if fields[2] != fmt.Sprintf("v=%d", phcVersion) {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}

	var mem, iter, lanes uint32
	if n, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &mem, &iter, &lanes); err != nil || n != 3 {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}
	if mem == 0 || iter == 0 || lanes == 0 || lanes > 255 {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}

	salt, err := b64.DecodeString(fields[4])
	if err != nil {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}
	key, err := b64.DecodeString(fields[5])
	if err != nil {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}

	return Argon2idParams{
		MemoryKiB:   mem,
		Iterations:  iter,
		Parallelism: uint8(lanes), // #nosec G115 -- checked <= 255 above.
		SaltLength:  uint32(len(salt)), // #nosec G115 -- decoded from a bounded field.
		KeyLength:   uint32(len(key)),  // #nosec G115 -- decoded from a bounded field.
	}, salt, key, nil
}
