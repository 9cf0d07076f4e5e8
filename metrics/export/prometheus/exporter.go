package prometheus

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/afromart/gate"
	"github.com/afromart/gate/metrics/export/internaldefs"
)

// Source supplies the values to export. *gate.Engine implements it.
type Source interface {
	MetricsSnapshot() gate.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter renders the engine metrics in Prometheus text format.
type Exporter struct {
	source Source
}

func New(source Source) *Exporter {
	return &Exporter{source: source}
}

// Handler serves the current metrics.
func (p *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = io.WriteString(w, p.Render())
	})
}

// Render returns the current metrics, or "" when metrics are disabled.
// Every known family is written, zero values included.
func (p *Exporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}
	snap := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if dropped == 0 && len(snap.Counters) == 0 && len(snap.Histograms) == 0 {
		return ""
	}

	var out strings.Builder
	out.Grow(8192)
	for _, def := range internaldefs.CounterDefs {
		counter(&out, def.Name, def.Help, snap.Counters[def.ID])
	}
	for _, def := range internaldefs.HistogramDefs {
		raw := internaldefs.NormalizeBuckets(snap.Histograms[def.ID])
		histogram(&out, def.Name, def.Help, internaldefs.CumulativeBuckets(raw))
	}
	counter(&out, "gate_audit_dropped_total", "Dropped audit events due to dispatcher backpressure.", dropped)
	return out.String()
}

func family(w io.Writer, name, help, kind string) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", name, escapeHelp(help), name, kind)
}

func counter(w io.Writer, name, help string, v uint64) {
	family(w, name, help, "counter")
	fmt.Fprintf(w, "%s %d\n", name, v)
}

// histogram writes cumulative buckets. The engine records no durations
// beyond the bucket index, so _sum is always 0.
func histogram(w io.Writer, name, help string, buckets [8]uint64) {
	family(w, name, help, "histogram")
	for i, le := range internaldefs.HistogramBounds {
		fmt.Fprintf(w, "%s_bucket{le=%q} %d\n", name, le, buckets[i])
	}
	fmt.Fprintf(w, "%s_count %d\n%s_sum 0\n", name, buckets[len(buckets)-1], name)
}

var helpEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`)

func escapeHelp(help string) string {
	return helpEscaper.Replace(help)
}
