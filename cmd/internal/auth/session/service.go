package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/onpaws/refresh-token-postgraphile/cmd/identity"
	"github.com/onpaws/refresh-token-postgraphile/cmd/internal/auth/token"
)

// Subjects is the subject collaborator the service consumes.
type Subjects interface {
	VerifyCredentials(ctx context.Context, email, password string) (identity.Subject, error)
	SubjectExists(ctx context.Context, id string) (bool, error)
}

// Service issues, rotates and validates tokens. Safe for concurrent use.
type Service struct {
	cfg      Config
	codec    *token.Codec
	subjects Subjects
}

// Issued is the result of a login or refresh.
type Issued struct {
	SubjectID    string
	Role         string
	AccessToken  string
	AccessExp    time.Time
	RefreshToken string
	RefreshExp   time.Time
}

// Option customizes a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	now func() time.Time
}

// WithClock overrides the time source used for signing and verification.
func WithClock(now func() time.Time) Option {
	return func(o *serviceOptions) { o.now = now }
}

// NewService validates cfg and builds a Service.
func NewService(cfg Config, subjects Subjects, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if subjects == nil {
		return nil, fmt.Errorf("%w: nil subject store", ErrConfig)
	}

	o := serviceOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	return &Service{
		cfg:      cfg,
		codec:    token.NewCodec(cfg.Issuer, cfg.Audience, token.WithClock(o.now)),
		subjects: subjects,
	}, nil
}

// Config returns the service configuration.
func (s *Service) Config() Config { return s.cfg }

// Authenticate verifies credentials and issues a fresh token pair.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Issued, error) {
	sub, err := s.subjects.VerifyCredentials(ctx, email, password)
	if err != nil {
		if identity.IsInvalidCredentials(err) || identity.IsInvalidInput(err) {
			return Issued{}, ErrAuthRejected
		}
		return Issued{}, fmt.Errorf("session authenticate: %w", err)
	}
	return s.issue(sub.ID, s.roleOr(sub.Role))
}

// Refresh validates a refresh token and rotates it.
//
//   - empty token: ErrNoSession
//   - bad signature, structure, issuer/audience, or expiry: ErrInvalidSession
//   - subject no longer exists: ErrSubjectGone
//   - store failure: wrapped store error
//
// On success the new refresh token has a full RefreshTTL window and
// always differs from the presented one.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Issued, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return Issued{}, ErrNoSession
	}
	if len(refreshToken) > 8192 {
		return Issued{}, ErrInvalidSession
	}

	claims, err := s.codec.Verify(refreshToken, s.cfg.RefreshSecret)
	if err != nil {
		return Issued{}, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}

	ok, err := s.subjects.SubjectExists(ctx, claims.SubjectID())
	if err != nil {
		return Issued{}, fmt.Errorf("session refresh: subject lookup: %w", err)
	}
	if !ok {
		return Issued{}, ErrSubjectGone
	}

	return s.issue(claims.SubjectID(), s.roleOr(claims.Role))
}

// ValidateAccessToken verifies an access token. It does not consult the
// subject store: a deleted subject's access token stays valid until exp.
func (s *Service) ValidateAccessToken(tok string) (token.Claims, error) {
	claims, err := s.codec.Verify(tok, s.cfg.AccessSecret)
	if err != nil {
		return token.Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims, nil
}

func (s *Service) issue(subjectID, role string) (Issued, error) {
	access, ac, err := s.codec.Sign(s.cfg.AccessSecret, subjectID, role, s.cfg.AccessTTL)
	if err != nil {
		return Issued{}, err
	}
	refresh, rc, err := s.codec.Sign(s.cfg.RefreshSecret, subjectID, role, s.cfg.RefreshTTL)
	if err != nil {
		return Issued{}, err
	}

	return Issued{
		SubjectID:    subjectID,
		Role:         role,
		AccessToken:  access,
		AccessExp:    ac.Expiry(),
		RefreshToken: refresh,
		RefreshExp:   rc.Expiry(),
	}, nil
}

func (s *Service) roleOr(role string) string {
	if strings.TrimSpace(role) == "" {
		return s.cfg.DefaultRole
	}
	return role
}
