package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/extraction-workbench/internal/core/domain"
)

func TestNormalizePath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"/v1/documents/abc", "/v1/documents/{document_id}"},
		{"/v1/documents/abc/fields/借款人", "/v1/documents/{document_id}/fields/{key}"},
		{"/v1/documents/abc/fields/import", "/v1/documents/{document_id}/fields/import"},
		{"/v1/documents/text", "/v1/documents/text"},
		{"/v1/rules/r1/skills/s1/optimize", "/v1/rules/{rule_id}/skills/{skill_id}/optimize"},
		{"/v1/rules/r1/versions/2", "/v1/rules/{rule_id}/versions/{version}"},
		{"/v1/rules/generate", "/v1/rules/generate"},
		{"/healthz", "/healthz"},
	}
	for _, tc := range cases {
		if got := normalizePath(tc.in); got != tc.want {
			t.Fatalf("normalizePath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func scrape(t *testing.T, handler http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}

func TestMiddlewareCountsRequests(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	handler := m.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/documents/d1/extract", nil))

	body := scrape(t, m.Handler())
	want := `ewb_http_requests_total{method="POST",path="/v1/documents/{document_id}/extract",service="api",status="409"} 1`
	if !strings.Contains(body, want) {
		t.Fatalf("missing %s in:\n%s", want, body)
	}
}

func TestWorkbenchMetricsShareRegistry(t *testing.T) {
	server := NewHTTPServerMetrics("api")
	wb := NewWorkbenchMetrics("api", server.Registerer())
	wb.RecordClassification(domain.DocTypeUnknown, true)
	wb.RecordExtraction("succeeded", 6)
	wb.ObserveBreakerState("ollama.generate", "open")

	body := scrape(t, server.Handler())
	for _, want := range []string{
		`ewb_workbench_classifications_total{doc_type="Unknown",fallback="true",service="api"} 1`,
		`ewb_workbench_extractions_total{service="api",status="succeeded"} 1`,
		`ewb_resilience_breaker_open{operation="ollama.generate",service="api"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %s in:\n%s", want, body)
		}
	}
}

func TestWorkerMetricsLabelsClassification(t *testing.T) {
	m := NewWorkerMetrics("worker")
	m.StartClassification()
	m.FinishClassification("worker", domain.DocTypeLoanAgreement, 2*time.Second, nil)
	m.StartClassification()
	m.FinishClassification("worker", domain.DocTypeLoanAgreement, time.Second, errors.New("boom"))

	body := scrape(t, m.Handler())
	for _, want := range []string{
		`ewb_worker_classifications_total{doc_type="` + string(domain.DocTypeLoanAgreement) + `",service="worker",status="success"} 1`,
		`ewb_worker_classifications_total{doc_type="",service="worker",status="error"} 1`,
		`ewb_worker_classifications_in_flight{service="worker"} 0`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %s in:\n%s", want, body)
		}
	}
}
