package prometheus

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/huigrowth/careauth"
	"github.com/huigrowth/careauth/api"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeSource struct {
	snapshot careauth.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() careauth.MetricsSnapshot { return f.snapshot }
func (f fakeSource) NotificationsDropped() uint64              { return f.dropped }

func TestCollectEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: careauth.MetricsSnapshot{
			Counters:   map[careauth.MetricID]uint64{},
			Histograms: map[careauth.MetricID][]uint64{},
		},
	})

	if got := testutil.CollectAndCount(exp); got != 0 {
		t.Fatalf("expected no series for disabled metrics, got %d", got)
	}
}

func TestCollectIncludesCounterAndHistogram(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: careauth.MetricsSnapshot{
			Counters: map[careauth.MetricID]uint64{
				careauth.MetricLoginSuccess: 7,
			},
			Histograms: map[careauth.MetricID][]uint64{
				careauth.MetricRemoteLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	expected := `
# HELP careauth_login_success_total Successful logins.
# TYPE careauth_login_success_total counter
careauth_login_success_total 7
# HELP careauth_notifications_dropped_total Notifications dropped due to dispatcher backpressure.
# TYPE careauth_notifications_dropped_total counter
careauth_notifications_dropped_total 2
# HELP careauth_remote_latency_seconds Backend call latency.
# TYPE careauth_remote_latency_seconds histogram
careauth_remote_latency_seconds_bucket{le="0.025"} 1
careauth_remote_latency_seconds_bucket{le="0.05"} 3
careauth_remote_latency_seconds_bucket{le="0.1"} 6
careauth_remote_latency_seconds_bucket{le="0.25"} 10
careauth_remote_latency_seconds_bucket{le="0.5"} 15
careauth_remote_latency_seconds_bucket{le="1"} 21
careauth_remote_latency_seconds_bucket{le="2.5"} 28
careauth_remote_latency_seconds_bucket{le="+Inf"} 36
careauth_remote_latency_seconds_sum 0
careauth_remote_latency_seconds_count 36
`
	err := testutil.CollectAndCompare(exp, strings.NewReader(expected),
		"careauth_login_success_total",
		"careauth_notifications_dropped_total",
		"careauth_remote_latency_seconds",
	)
	if err != nil {
		t.Fatalf("unexpected exposition: %v", err)
	}
}

func TestHandlerServesStoreMetrics(t *testing.T) {
	client := api.New("http://127.0.0.1:0")
	store, err := careauth.New().WithAPIClient(client).Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer store.Close()
	store.Logout()

	exp := NewPrometheusExporter(store)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "careauth_logout_total 1") {
		t.Fatalf("expected logout counter, got:\n%s", body)
	}
}
