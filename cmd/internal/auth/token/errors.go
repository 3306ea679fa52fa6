package token

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed covers bad structure, bad signature, wrong algorithm,
	// wrong issuer or audience, and a missing exp.
	ErrMalformed = errors.New("token malformed")

	// ErrExpired means the token verified but now >= exp.
	ErrExpired = errors.New("token expired")
)

// VerificationError wraps the underlying parser failure with one of the
// package kinds above.
type VerificationError struct {
	Kind  error
	Cause error
}

func (e *VerificationError) Error() string {
	if e.Cause == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *VerificationError) Unwrap() error { return e.Kind }

func malformed(cause error) error { return &VerificationError{Kind: ErrMalformed, Cause: cause} }
