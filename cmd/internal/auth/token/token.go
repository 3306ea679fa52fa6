package token

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// Claims is the payload of both token kinds.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// SubjectID returns the sub claim.
func (c Claims) SubjectID() string { return c.Subject }

// Expiry returns exp, or the zero time when absent.
func (c Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// ExpiredAt reports whether the claims are expired at now. Missing exp
// counts as expired.
func (c Claims) ExpiredAt(now time.Time) bool {
	if c.ExpiresAt == nil {
		return true
	}
	return !now.Before(c.ExpiresAt.Time)
}

// Codec signs and verifies tokens for one issuer/audience pair.
type Codec struct {
	issuer   string
	audience string
	now      func() time.Time
}

// Option customizes a Codec.
type Option func(*Codec)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCodec returns a Codec stamping and requiring issuer and audience.
func NewCodec(issuer, audience string, opts ...Option) *Codec {
	c := &Codec{
		issuer:   strings.TrimSpace(issuer),
		audience: strings.TrimSpace(audience),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sign issues a token for subjectID valid for ttl. Every token gets a fresh
// ULID jti, so two signings in the same second still differ.
func (c *Codec) Sign(secret []byte, subjectID, role string, ttl time.Duration) (string, Claims, error) {
	if len(secret) == 0 {
		return "", Claims{}, errors.New("token sign: empty secret")
	}
	if strings.TrimSpace(subjectID) == "" {
		return "", Claims{}, errors.New("token sign: empty subject")
	}
	if ttl <= 0 {
		return "", Claims{}, fmt.Errorf("token sign: non-positive ttl %s", ttl)
	}

	now := c.now()
	jti, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", Claims{}, fmt.Errorf("token sign: jti: %w", err)
	}

	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   subjectID,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        jti.String(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("token sign: %w", err)
	}
	return signed, claims, nil
}

// Verify checks signature, algorithm, issuer, audience and expiry.
// Failures are *VerificationError wrapping ErrMalformed or ErrExpired.
func (c *Codec) Verify(tok string, secret []byte) (Claims, error) {
	if strings.TrimSpace(tok) == "" {
		return Claims{}, malformed(errors.New("empty token"))
	}

	p := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)

	var claims Claims
	_, err := p.ParseWithClaims(tok, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired) && !errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return Claims{}, &VerificationError{Kind: ErrExpired, Cause: err}
	default:
		return Claims{}, malformed(err)
	}

	if claims.Subject == "" {
		return Claims{}, malformed(errors.New("missing sub"))
	}
	// NumericDate has second precision; the parser's own check already
	// rejects exp <= now, this keeps the boundary explicit.
	if claims.ExpiredAt(c.now()) {
		return Claims{}, &VerificationError{Kind: ErrExpired}
	}
	return claims, nil
}

// DecodeUnverified reads claims without checking the signature. Clients use
// it to learn exp; it must never gate access.
func DecodeUnverified(tok string) (Claims, error) {
	if strings.TrimSpace(tok) == "" {
		return Claims{}, malformed(errors.New("empty token"))
	}
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &claims); err != nil {
		return Claims{}, malformed(err)
	}
	return claims, nil
}
