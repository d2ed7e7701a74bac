package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetrics_Exposition(t *testing.T) {
	m := New()

	m.ObserveHTTP("/submit", "POST", 200, 20*time.Millisecond)
	m.ObserveUpstream("submit", OutcomeTransportError, time.Second)
	m.ObserveResults(3)
	m.SetBreakerOpen(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	text := string(body)

	for _, want := range []string{
		`resumematch_http_requests_total{method="POST",route="/submit",status="200"} 1`,
		`resumematch_upstream_requests_total{operation="submit",outcome="transport_error"} 1`,
		`resumematch_result_rows_count 1`,
		`resumematch_upstream_breaker_open 1`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveHTTP("/", "GET", 200, time.Millisecond)
	m.ObserveUpstream("submit", OutcomeOK, time.Millisecond)
	m.ObserveResults(1)
	m.SetBreakerOpen(false)
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	_ = New()
	_ = New()
}
