// Package internal holds helpers private to gate: session id generation and
// the hashed user token used as the Redis token key.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - config: environment and .env loading for commands
//   - dbx: transaction helper for the SQL store
//   - flows: the account flows behind every Engine operation
//   - logging: the Logger interface and its slog implementation
//   - notify: background mail workers
//   - rate: Redis fixed-window counters for the sign-in throttle
//   - stores: the Token Cache
//
// # What this package must NOT do
//
//   - Export types that appear in the public gate API.
package internal
