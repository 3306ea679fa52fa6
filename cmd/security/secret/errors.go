package secret

import "errors"

var (
	ErrSecretMissing  = errors.New("signing secret missing")
	ErrSecretTooShort = errors.New("signing secret too short")
	ErrSecretReused   = errors.New("signing secrets must differ")
)
