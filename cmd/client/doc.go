// Package client is the caller side of the two-token session.
//
// A Client keeps the access token in process memory only (Session) and
// leaves the refresh token to an HttpOnly cookie in its cookie jar. Every
// request runs through a Pipeline of named stages:
//
//	validity -> refresh -> auth -> observe -> transport
//
// When the access token is absent or expired, the refresh stage joins a
// single-flight exchange with the refresh endpoint: however many requests
// race, one network refresh happens and all of them share its outcome.
package client
