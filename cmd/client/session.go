package client

import (
	"fmt"
	"sync"
	"time"

	"github.com/onpaws/refresh-token-postgraphile/cmd/internal/auth/token"
)

// TokenState is the client's view of its access token.
type TokenState int

const (
	StateUnknown TokenState = iota
	StateValid
	StateExpired
	StateAbsent
	StateRefreshing
)

func (s TokenState) String() string {
	switch s {
	case StateValid:
		return "valid"
	case StateExpired:
		return "expired"
	case StateAbsent:
		return "absent"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// Session holds the access token in memory. It is never written to disk.
// Safe for concurrent use.
type Session struct {
	now func() time.Time

	mu         sync.RWMutex
	token      string
	claims     token.Claims
	state      TokenState
	refreshing bool
	// epoch advances on every Set and Clear. A refresh outcome is only
	// applied to the epoch it started from.
	epoch uint64
}

// NewSession returns an empty session in StateUnknown.
func NewSession(now func() time.Time) *Session {
	if now == nil {
		now = time.Now
	}
	return &Session{now: now}
}

// Set stores tok after decoding it (signature is not checked client-side).
// An undecodable token clears the session.
func (s *Session) Set(tok string) error {
	claims, err := token.DecodeUnverified(tok)
	if err != nil {
		s.Clear()
		return fmt.Errorf("%w: %w", ErrNotAuthenticated, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(tok, claims)
	return nil
}

// Check evaluates the token against the clock and returns it with its
// state. A token whose exp equals now is expired.
func (s *Session) Check() (string, TokenState) {
	tok, st, _ := s.snapshot()
	return tok, st
}

// snapshot is Check plus the epoch the answer belongs to.
func (s *Session) snapshot() (string, TokenState, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refreshing {
		return s.token, StateRefreshing, s.epoch
	}
	s.state = s.evalLocked()
	return s.token, s.state, s.epoch
}

// Clear drops the token. The session ends in StateAbsent.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

// Epoch counts Set and Clear calls since the session was created.
func (s *Session) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// settle applies a refresh outcome started at epoch. When the session
// moved on meanwhile (login, logout) the outcome is dropped and applied
// is false. Otherwise a fetch error or an undecodable token clears the
// session, and next is the resulting epoch.
func (s *Session) settle(epoch uint64, tok string, fetchErr error) (next uint64, applied bool, err error) {
	var claims token.Claims
	err = fetchErr
	if err == nil {
		if claims, err = token.DecodeUnverified(tok); err != nil {
			err = fmt.Errorf("%w: %w", ErrNotAuthenticated, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		// Refreshes are single-flight, so the flag can only be ours.
		s.refreshing = false
		return s.epoch, false, err
	}
	if err != nil {
		s.clearLocked()
	} else {
		s.setLocked(tok, claims)
	}
	return s.epoch, true, err
}

func (s *Session) setLocked(tok string, claims token.Claims) {
	s.token = tok
	s.claims = claims
	s.refreshing = false
	s.epoch++
	s.state = s.evalLocked()
}

func (s *Session) clearLocked() {
	s.token = ""
	s.claims = token.Claims{}
	s.refreshing = false
	s.epoch++
	s.state = StateAbsent
}

// State returns the last evaluated state without consulting the clock.
func (s *Session) State() TokenState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.refreshing {
		return StateRefreshing
	}
	return s.state
}

// Token returns the raw access token, possibly expired or empty.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Subject returns the sub claim of the held token.
func (s *Session) Subject() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.claims.SubjectID()
}

// ExpiresAt returns the exp of the held token, zero when absent.
func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.claims.Expiry()
}

// beginRefresh marks a refresh in flight for epoch. It reports false when
// the session already moved past epoch.
func (s *Session) beginRefresh(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return false
	}
	s.refreshing = true
	return true
}

func (s *Session) evalLocked() TokenState {
	switch {
	case s.token == "":
		return StateAbsent
	case s.claims.ExpiredAt(s.now()):
		return StateExpired
	default:
		return StateValid
	}
}
