package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/onpaws/refresh-token-postgraphile/cmd/identity/ids"
	"github.com/onpaws/refresh-token-postgraphile/cmd/security/password"
)

type memoryAccount struct {
	subject Subject
	hash    string
}

// MemoryStore is an in-process Store. Safe for concurrent use.
type MemoryStore struct {
	passwords password.Config

	mu      sync.RWMutex
	byID    map[string]*memoryAccount
	byEmail map[string]*memoryAccount
}

// NewMemoryStore returns an empty store hashing with cfg.
func NewMemoryStore(cfg password.Config) *MemoryStore {
	return &MemoryStore{
		passwords: cfg,
		byID:      make(map[string]*memoryAccount),
		byEmail:   make(map[string]*memoryAccount),
	}
}

func (m *MemoryStore) CreateSubject(ctx context.Context, in CreateSubjectInput) (Subject, error) {
	const op = "identity.CreateSubject"

	if err := ctx.Err(); err != nil {
		return Subject{}, err
	}
	norm := NormalizeEmail(in.Email)
	if !validEmail(norm) {
		return Subject{}, invalid(op, "email is required")
	}
	hash, err := m.passwords.Hash(in.Password)
	if err != nil {
		return Subject{}, invalid(op, err.Error())
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	id, err := ids.NewULID(now)
	if err != nil {
		return Subject{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.byEmail[norm]; taken {
		return Subject{}, ConflictError{Op: op, Field: "email"}
	}
	acct := &memoryAccount{subject: Subject{ID: id, Role: in.Role}, hash: hash}
	m.byID[id] = acct
	m.byEmail[norm] = acct
	return acct.subject, nil
}

func (m *MemoryStore) VerifyCredentials(ctx context.Context, email, pw string) (Subject, error) {
	const op = "identity.VerifyCredentials"

	if err := ctx.Err(); err != nil {
		return Subject{}, err
	}

	m.mu.RLock()
	acct, ok := m.byEmail[NormalizeEmail(email)]
	m.mu.RUnlock()

	if !ok {
		m.passwords.SpendVerify(pw)
		return Subject{}, rejected(op)
	}
	match, err := m.passwords.Verify(acct.hash, pw)
	if err != nil || !match {
		return Subject{}, rejected(op)
	}
	return acct.subject, nil
}

func (m *MemoryStore) SubjectExists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byID[strings.TrimSpace(id)]
	return ok, nil
}

// DeleteSubject removes a subject and its credentials. Missing ids yield
// an error wrapping ErrNotFound.
func (m *MemoryStore) DeleteSubject(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct, ok := m.byID[id]
	if !ok {
		return OpError{Op: "identity.DeleteSubject", Kind: ErrNotFound}
	}
	delete(m.byID, id)
	for email, a := range m.byEmail {
		if a == acct {
			delete(m.byEmail, email)
		}
	}
	return nil
}
