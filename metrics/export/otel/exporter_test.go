package otel

import (
	"context"
	"sync"
	"testing"

	"github.com/afromart/gate"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu      sync.RWMutex
	signIns uint64
	buckets []uint64
	dropped uint64
}

func (f *fakeSource) MetricsSnapshot() gate.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return gate.MetricsSnapshot{
		Counters: map[gate.MetricID]uint64{gate.MetricSignInSuccess: f.signIns},
		Histograms: map[gate.MetricID][]uint64{
			gate.MetricSessionLoadLatency: append([]uint64(nil), f.buckets...),
		},
	}
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReader(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func findSum(rm metricdata.ResourceMetrics, name string) (int64, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				if len(data.DataPoints) > 0 {
					return data.DataPoints[0].Value, true
				}
			case metricdata.Gauge[int64]:
				if len(data.DataPoints) > 0 {
					return data.DataPoints[0].Value, true
				}
			}
		}
	}
	return 0, false
}

func TestRegisterCollectsSnapshot(t *testing.T) {
	reader, provider := newReader(t)
	src := &fakeSource{signIns: 3, buckets: []uint64{1, 1, 1, 1, 1, 1, 1, 1}, dropped: 1}

	exp, err := Register(provider.Meter("gate-test"), src)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	cases := map[string]int64{
		"gate_signin_success_total":                         3,
		"gate_audit_dropped_total":                          1,
		"gate_session_load_latency_seconds_bucket_le_0_005": 1,
		"gate_session_load_latency_seconds_bucket_le_inf":   8,
		"gate_session_load_latency_seconds_count":           8,
	}
	for name, want := range cases {
		got, ok := findSum(rm, name)
		if !ok {
			t.Fatalf("metric %s not collected", name)
		}
		if got != want {
			t.Fatalf("%s = %d, want %d", name, got, want)
		}
	}
}

func TestRegisterRejectsNil(t *testing.T) {
	_, provider := newReader(t)

	if _, err := Register(provider.Meter("gate-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := Register(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestConcurrentCollect(t *testing.T) {
	reader, provider := newReader(t)
	src := &fakeSource{buckets: []uint64{1}}

	exp, err := Register(provider.Meter("gate-test"), src)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.signIns = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
