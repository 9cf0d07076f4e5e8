// Package audit relays account lifecycle events to a sink off the request
// path.
//
// The [Dispatcher] buffers events and forwards them from a single goroutine.
// With DropIfFull set, a full buffer drops the event and counts it instead
// of blocking the caller. Deciding which events to emit is left to the
// engine.
package audit
