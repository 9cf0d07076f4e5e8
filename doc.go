// Package gate is the identity subsystem of the Afromart marketplace:
// registration with email verification, sign-in and sign-out backed by
// Redis sessions, and self-service password reset.
//
// # Architecture
//
// An [Engine] is assembled once through a [Builder]:
//
//	engine, err := gate.New().
//		WithConfig(cfg).
//		WithRedis(rdb).
//		WithUserStore(postgres.New(db)).
//		WithNotifier(dispatcher).
//		Build()
//
// Flow logic lives in internal/flows as plain functions over dependency
// structs; the Engine converts between the public types here and the flow
// types and maps infrastructure failures onto the sentinel errors.
//
// # Capability links
//
// Verification and reset links carry hex(sha256(user id)) and are backed
// by Redis keys "<prefix>signup_<hash>" (3 days) and
// "<prefix>passwordreset_<hash>" (5 minutes). The hash is derived, not
// random: whoever can enumerate user ids can compute it, so the links are
// only as private as the mailbox and the id space.
//
// # Form errors versus errors
//
// Invalid input and business rule conflicts never surface as error values.
// Results carry a [form.Errors] map for the caller to re-render; a non-nil
// error always means the stores could not be reached.
package gate
