package client

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated means the server declined to issue an access token
	// (no session, invalid session, or subject gone) or returned one that
	// cannot be decoded. The local session is cleared; nothing is retried.
	ErrNotAuthenticated = errors.New("client: not authenticated")

	// ErrTransport marks network failures and unexpected HTTP statuses.
	ErrTransport = errors.New("client: transport failure")

	// ErrRefreshTimeout means the shared refresh did not finish within
	// Config.RefreshTimeout. Every waiter of that refresh receives it.
	ErrRefreshTimeout = errors.New("client: refresh timed out")

	// ErrAuthRejected is returned by Login for bad credentials.
	ErrAuthRejected = errors.New("client: credentials rejected")
)

// TransportError carries the failing operation and, for protocol errors,
// the HTTP status. It matches ErrTransport with errors.Is.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("client: %s: status %d: %v", e.Op, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("client: %s: status %d", e.Op, e.Status)
	default:
		return fmt.Sprintf("client: %s: %v", e.Op, e.Err)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }
