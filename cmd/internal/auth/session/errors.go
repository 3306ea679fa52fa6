package session

import "errors"

var (
	// ErrNoSession is returned when no refresh token was presented.
	ErrNoSession = errors.New("no session")

	// ErrInvalidSession is returned when the refresh token is malformed,
	// signed with the wrong secret, or expired.
	ErrInvalidSession = errors.New("invalid session")

	// ErrSubjectGone is returned when the refresh token verifies but its
	// subject no longer exists.
	ErrSubjectGone = errors.New("subject gone")

	// ErrAuthRejected is returned when credential login fails.
	ErrAuthRejected = errors.New("authentication rejected")

	// ErrInvalidToken is returned when an access token fails verification.
	ErrInvalidToken = errors.New("invalid token")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)

// FailureKind maps an error from this package to a stable, low-cardinality
// label for logs and metrics.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoSession):
		return "no_session"
	case errors.Is(err, ErrInvalidSession):
		return "invalid_session"
	case errors.Is(err, ErrSubjectGone):
		return "subject_gone"
	case errors.Is(err, ErrAuthRejected):
		return "auth_rejected"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	default:
		return "error"
	}
}
