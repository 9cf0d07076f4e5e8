// Package session stores signed-in customer sessions in Redis.
//
// A session record is a fixed-size binary blob keyed by session id. A
// per-user set indexes the ids so a password reset can revoke every session
// of the account. The package does not read cookies or tokens; the engine
// decides when sessions are created and destroyed.
package session
