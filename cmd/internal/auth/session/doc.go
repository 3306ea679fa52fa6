// Package session issues and rotates the access/refresh token pair.
//
// Access tokens are short-lived HS256 JWTs presented as bearer
// credentials. Refresh tokens are long-lived HS256 JWTs signed with a
// separate secret and carried only in an HttpOnly cookie. The server keeps
// no session rows: a refresh is valid when its signature and expiry check
// out and its subject still exists, and every successful refresh returns a
// new refresh token with a fresh expiry window.
//
// Transport concerns (cookies, JSON) live in the api package.
package session
