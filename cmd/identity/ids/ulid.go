// Package ids mints the sortable identifiers used for subjects and requests.
package ids

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewULID returns a 26-char ULID stamped with now (UTC now when zero).
func NewULID(now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// MustULID is NewULID for call sites that cannot fail meaningfully, such
// as request ids. crypto/rand does not fail on supported platforms.
func MustULID() string {
	id, err := NewULID(time.Time{})
	if err != nil {
		panic(err)
	}
	return id
}
