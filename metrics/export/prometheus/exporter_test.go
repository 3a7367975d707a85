package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/identityauth"
	"github.com/MrEthical07/identityauth/directory/memory"
	"github.com/MrEthical07/identityauth/password"
)

type fakeSource struct {
	snapshot identityauth.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() identityauth.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                          { return f.dropped }

func emptySnapshot() identityauth.MetricsSnapshot {
	return identityauth.MetricsSnapshot{
		Counters:   map[identityauth.MetricID]uint64{},
		Histograms: map[identityauth.MetricID][]uint64{},
	}
}

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	if got := NewPrometheusExporterFromSource(fakeSource{snapshot: emptySnapshot()}).Render(); got != "" {
		t.Fatalf("expected empty output, got:\n%s", got)
	}
	var nilExporter *PrometheusExporter
	if got := nilExporter.Render(); got != "" {
		t.Fatalf("nil exporter rendered %q", got)
	}
}

func TestRenderIncludesDomainCounters(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: identityauth.MetricsSnapshot{
			Counters: map[identityauth.MetricID]uint64{
				identityauth.MetricLoginSuccess:         7,
				identityauth.MetricRefreshReuseDetected: 1,
				identityauth.MetricRegisterDuplicate:    3,
			},
			Histograms: map[identityauth.MetricID][]uint64{
				identityauth.MetricValidateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
			HistogramSums: map[identityauth.MetricID]time.Duration{
				identityauth.MetricValidateLatency: 1500 * time.Millisecond,
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	for _, want := range []string{
		"identityauth_login_success_total 7",
		"identityauth_refresh_reuse_detected_total 1",
		"identityauth_register_duplicate_total 3",
		"identityauth_login_failure_total 0",
		"# TYPE identityauth_validate_latency_seconds histogram",
		`identityauth_validate_latency_seconds_bucket{le="0.005"} 1`,
		`identityauth_validate_latency_seconds_bucket{le="0.5"} 28`,
		`identityauth_validate_latency_seconds_bucket{le="+Inf"} 36`,
		"identityauth_validate_latency_seconds_sum 1.5",
		"identityauth_validate_latency_seconds_count 36",
		"identityauth_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestHandlerServesEngineMetrics(t *testing.T) {
	cfg := identityauth.DefaultConfig()
	cfg.JWT.Secret = "prometheus-test-secret-prometheus-test"
	cfg.JWT.Issuer = "issuer"
	cfg.JWT.Audience = "audience"
	hasher, err := password.NewArgon2(password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16})
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}
	dir, err := memory.New(hasher)
	if err != nil {
		t.Fatalf("memory.New: %v", err)
	}
	engine, err := identityauth.New().WithConfig(cfg).WithDirectory(dir).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer engine.Close()
	_, _ = engine.ValidateAccess(t.Context(), "garbage")

	rec := httptest.NewRecorder()
	NewPrometheusExporter(engine).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/plain") {
		t.Fatalf("content type = %q", got)
	}
	if !strings.Contains(rec.Body.String(), "identityauth_validate_failure_total 1") {
		t.Fatalf("body:\n%s", rec.Body.String())
	}
}
