package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/afromart/gate"
)

type fakeSource struct {
	snapshot gate.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() gate.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                  { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := New(fakeSource{
		snapshot: gate.MetricsSnapshot{
			Counters:   map[gate.MetricID]uint64{},
			Histograms: map[gate.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderIncludesCounterAndHistogram(t *testing.T) {
	exp := New(fakeSource{
		snapshot: gate.MetricsSnapshot{
			Counters: map[gate.MetricID]uint64{
				gate.MetricSignupCreated:   3,
				gate.MetricSignInThrottled: 1,
			},
			Histograms: map[gate.MetricID][]uint64{
				gate.MetricSessionLoadLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	for _, want := range []string{
		"gate_signup_created_total 3",
		"gate_signin_throttled_total 1",
		"gate_signin_success_total 0",
		"# TYPE gate_session_load_latency_seconds histogram",
		"gate_session_load_latency_seconds_bucket{le=\"0.005\"} 1",
		"gate_session_load_latency_seconds_bucket{le=\"+Inf\"} 36",
		"gate_session_load_latency_seconds_count 36",
		"gate_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestHistogramBlockLayout(t *testing.T) {
	var b strings.Builder
	histogram(&b, "x_seconds", "Line one.\nLine two.", [8]uint64{1, 1, 2, 2, 3, 3, 4, 5})

	want := "# HELP x_seconds Line one.\\nLine two.\n" +
		"# TYPE x_seconds histogram\n" +
		"x_seconds_bucket{le=\"0.005\"} 1\n" +
		"x_seconds_bucket{le=\"0.01\"} 1\n" +
		"x_seconds_bucket{le=\"0.025\"} 2\n" +
		"x_seconds_bucket{le=\"0.05\"} 2\n" +
		"x_seconds_bucket{le=\"0.1\"} 3\n" +
		"x_seconds_bucket{le=\"0.25\"} 3\n" +
		"x_seconds_bucket{le=\"0.5\"} 4\n" +
		"x_seconds_bucket{le=\"+Inf\"} 5\n" +
		"x_seconds_count 5\n" +
		"x_seconds_sum 0\n"
	if got := b.String(); got != want {
		t.Fatalf("unexpected histogram block:\n%s", got)
	}
}

func TestEscapeHelp(t *testing.T) {
	if got := escapeHelp(`a\b` + "\nc"); got != `a\\b\nc` {
		t.Fatalf("escapeHelp = %q", got)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := New(fakeSource{
		snapshot: gate.MetricsSnapshot{
			Counters:   map[gate.MetricID]uint64{gate.MetricSignOut: 1},
			Histograms: map[gate.MetricID][]uint64{},
		},
	})

	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "gate_signout_total 1") {
		t.Fatalf("unexpected body:\n%s", rec.Body.String())
	}
}

func BenchmarkRender(b *testing.B) {
	exp := New(fakeSource{
		snapshot: gate.MetricsSnapshot{
			Counters: map[gate.MetricID]uint64{
				gate.MetricSignInSuccess:  1000,
				gate.MetricSignInFailure:  40,
				gate.MetricSessionCreated: 1000,
			},
			Histograms: map[gate.MetricID][]uint64{
				gate.MetricSessionLoadLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
