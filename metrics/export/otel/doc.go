// Package otel publishes gate metrics through an OpenTelemetry meter.
//
// [Register] creates one observable counter per gate counter and one
// observable gauge per histogram bucket. A single callback takes a
// snapshot on every collection cycle. The caller owns the MeterProvider.
package otel
