// Package secret loads token signing secrets from the environment and
// derives log-safe digests from secrets and tokens.
//
// Secrets are trimmed and length-checked on load. Raw secret or token
// bytes never leave this package in printable form; Fingerprint and Digest
// return short hex tags suitable for logs and audit records.
package secret
