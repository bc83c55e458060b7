package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/devmarvs/schoolgate/apperr"
)

func TestPrometheusHandler(t *testing.T) {
	reg := New()
	start := reg.Start()
	reg.End(start, http.StatusOK, nil)
	reg.End(reg.Start(), http.StatusForbidden, apperr.New(apperr.KindAuthorizationDenied, 403, "no", nil))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	PrometheusHandler(reg).ServeHTTP(rec, req)

	body := rec.Body.String()
	for _, want := range []string{
		"schoolgate_requests_total 2",
		"schoolgate_errors_total 1",
		"schoolgate_latency_seconds_count 2",
		"schoolgate_latency_seconds_bucket{le=\"+Inf\"} 2",
		"schoolgate_statuses_total{code=\"403\"} 1",
		"schoolgate_failures_total{kind=\"authorization_denied\"} 1",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in output:\n%s", want, body)
		}
	}
}

func TestPrometheusHandlerWithoutRegistry(t *testing.T) {
	rec := httptest.NewRecorder()
	PrometheusHandler(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
