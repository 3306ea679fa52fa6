// Package token signs and verifies the HS256 JWTs used for access and
// refresh credentials.
//
// A Codec is bound to one issuer/audience pair; the signing secret is
// chosen per call so the same Codec serves both token kinds. Expiry is
// strict: a token whose exp equals the current instant is expired.
package token
