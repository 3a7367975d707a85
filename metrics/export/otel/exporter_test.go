package otel

import (
	"context"
	"maps"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/identityauth"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot identityauth.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() identityauth.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return identityauth.MetricsSnapshot{
		Counters:      maps.Clone(f.snapshot.Counters),
		Histograms:    maps.Clone(f.snapshot.Histograms),
		HistogramSums: maps.Clone(f.snapshot.HistogramSums),
	}
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReader() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func int64Value(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				return data.DataPoints[0].Value
			case metricdata.Gauge[int64]:
				return data.DataPoints[0].Value
			}
			t.Fatalf("metric %s has unexpected data %T", name, m.Data)
		}
	}
	t.Fatalf("metric %s not collected", name)
	return 0
}

func float64Gauge(t *testing.T, rm metricdata.ResourceMetrics, name string) float64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				g, ok := m.Data.(metricdata.Gauge[float64])
				if !ok {
					t.Fatalf("metric %s has unexpected data %T", name, m.Data)
				}
				return g.DataPoints[0].Value
			}
		}
	}
	t.Fatalf("metric %s not collected", name)
	return 0
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newReader()
	meter := provider.Meter("identityauth-test")

	src := &fakeSource{
		snapshot: identityauth.MetricsSnapshot{
			Counters: map[identityauth.MetricID]uint64{
				identityauth.MetricLoginSuccess:      3,
				identityauth.MetricRegisterDuplicate: 2,
			},
			Histograms: map[identityauth.MetricID][]uint64{
				identityauth.MetricValidateLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
			HistogramSums: map[identityauth.MetricID]time.Duration{
				identityauth.MetricValidateLatency: 250 * time.Millisecond,
			},
		},
		dropped: 1,
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	if got := int64Value(t, rm, "identityauth_login_success_total"); got != 3 {
		t.Fatalf("login success = %d", got)
	}
	if got := int64Value(t, rm, "identityauth_register_duplicate_total"); got != 2 {
		t.Fatalf("register duplicate = %d", got)
	}
	if got := int64Value(t, rm, "identityauth_validate_latency_seconds_bucket_le_inf"); got != 8 {
		t.Fatalf("+Inf bucket = %d", got)
	}
	if got := int64Value(t, rm, "identityauth_validate_latency_seconds_bucket_le_0_005"); got != 1 {
		t.Fatalf("5ms bucket = %d", got)
	}
	if got := int64Value(t, rm, "identityauth_validate_latency_seconds_count"); got != 8 {
		t.Fatalf("count = %d", got)
	}
	if got := float64Gauge(t, rm, "identityauth_validate_latency_seconds_sum"); got != 0.25 {
		t.Fatalf("sum = %v", got)
	}
	if got := int64Value(t, rm, "identityauth_audit_dropped_total"); got != 1 {
		t.Fatalf("audit dropped = %d", got)
	}
}

func TestExporterRejectsNilArguments(t *testing.T) {
	_, provider := newReader()
	meter := provider.Meter("identityauth-test")

	if _, err := NewOTelExporterFromSource(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewOTelExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newReader()
	meter := provider.Meter("identityauth-test")

	src := &fakeSource{
		snapshot: identityauth.MetricsSnapshot{
			Counters: map[identityauth.MetricID]uint64{
				identityauth.MetricRefreshSuccess: 1,
			},
			Histograms: map[identityauth.MetricID][]uint64{},
		},
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() { _ = exp.Close() }()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[identityauth.MetricRefreshSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
