// Package stores holds the Redis-backed token cache used by the signup and
// password reset flows.
//
// A token entry maps a namespaced hash to a user identifier and expires on
// its own. The package performs single-key operations only; any
// check-then-set sequence is composed by the flow functions in
// internal/flows and is not atomic.
package stores
