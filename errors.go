package gate

import "errors"

var (
	// ErrEngineNotReady is returned when an Engine method runs without the
	// dependencies it needs.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrUnauthorized is returned when an operation needs a signed-in requester.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUserNotFound is returned by a UserStore when no row matches.
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameTaken is returned by a UserStore when the username unique
	// constraint rejects an insert.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrStoreUnavailable wraps credential store transport failures.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrCacheUnavailable wraps token cache and session store failures.
	ErrCacheUnavailable = errors.New("token cache unavailable")
	// ErrSessionNotFound is returned when the cookie names no live session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidToken is returned when the session cookie fails signature or
	// claim checks.
	ErrInvalidToken = errors.New("invalid session token")
	// ErrProvisionInvalid is returned when a provisioning request fails the
	// account field rules.
	ErrProvisionInvalid = errors.New("invalid provisioning request")
	// ErrRedisRequired is returned by Build without a Redis client.
	ErrRedisRequired = errors.New("redis client required")
	// ErrUserStoreRequired is returned by Build without a UserStore.
	ErrUserStoreRequired = errors.New("user store required")
	// ErrNotifierRequired is returned by Build without a Notifier.
	ErrNotifierRequired = errors.New("notifier required")
	// ErrBuilderUsed is returned by a second call to Build.
	ErrBuilderUsed = errors.New("builder already used")
)
