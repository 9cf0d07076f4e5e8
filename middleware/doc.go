// Package middleware adapts the gate engine to net/http.
//
// # Session loading
//
// [LoadSession] reads the session cookie, resolves it through
// Engine.Authenticate and stores the resulting [gate.Identity] in the
// request context. Requests without a usable cookie continue anonymously;
// a stale cookie is cleared on the way through. The client IP and
// User-Agent are attached for the engine's throttle and audit trail.
//
// # Guards
//
// [RequireAuth] redirects anonymous requesters to the sign-in page with a
// next parameter pointing back at the original URL.
//
// This package never parses tokens or touches Redis itself; every decision
// comes from the engine.
package middleware
