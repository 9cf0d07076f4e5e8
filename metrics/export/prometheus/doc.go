// Package prometheus renders gate metrics in the Prometheus text exposition
// format. Counters are named gate_*_total and the one histogram is
// gate_session_load_latency_seconds. Nothing is registered globally;
// callers mount [Exporter.Handler].
package prometheus
