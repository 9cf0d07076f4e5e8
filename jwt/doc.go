// Package jwt signs and verifies the session cookie token. The token only
// names a user and a stored session; the session record in Redis remains
// the authority on whether it is still valid.
package jwt
