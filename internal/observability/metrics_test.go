package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMiddlewareRecordsRequests(t *testing.T) {
	metrics := NewMetrics()
	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/stock/1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTeapot, rec.Code)

	body := scrape(t, metrics)
	require.Contains(t, body, `lumapos_http_requests_total{code="418",route="unknown"} 1`)
}

func TestDomainCounters(t *testing.T) {
	metrics := NewMetrics()
	metrics.LedgerWrite("sales")
	metrics.LedgerWrite("sales")
	metrics.UsageAccepted(3)
	metrics.UsageRejected()

	body := scrape(t, metrics)
	require.Contains(t, body, `lumapos_ledger_writes_total{ledger="sales"} 2`)
	require.Contains(t, body, "lumapos_package_usage_lines_accepted_total 3")
	require.Contains(t, body, "lumapos_package_usage_batches_rejected_total 1")
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.LedgerWrite("sales")
	metrics.UsageAccepted(1)
	metrics.UsageRejected()

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func scrape(t *testing.T, metrics *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}
