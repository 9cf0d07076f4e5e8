// Package rate throttles repeated failed sign-ins with fixed-window Redis
// counters keyed by username and client IP.
package rate
