package identity

import (
	"context"
	"time"
)

// Subject is the principal tokens are issued for.
type Subject struct {
	ID   string
	Role string
}

// CreateSubjectInput registers a subject with email/password credentials.
// An empty Role leaves role assignment to the session layer's default.
type CreateSubjectInput struct {
	Email    string
	Password string
	Role     string
	Now      time.Time
}

// Store is the subject boundary consumed by the session layer and the
// runtime seeding code.
type Store interface {
	// VerifyCredentials returns the subject owning email/password, or an
	// error wrapping ErrInvalidCredentials. Unknown email and wrong
	// password are indistinguishable.
	VerifyCredentials(ctx context.Context, email, password string) (Subject, error)

	// SubjectExists reports whether id is still a live subject. Lookup
	// failures are returned as errors, never as false.
	SubjectExists(ctx context.Context, id string) (bool, error)

	CreateSubject(ctx context.Context, in CreateSubjectInput) (Subject, error)
}
