package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	ledgerWrites    *prometheus.CounterVec
	usageAccepted   prometheus.Counter
	usageRejected   prometheus.Counter
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lumapos_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lumapos_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	ledgerWrites := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lumapos_ledger_writes_total",
		Help: "Quantity-affecting ledger writes by ledger name.",
	}, []string{"ledger"})
	usageAccepted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lumapos_package_usage_lines_accepted_total",
		Help: "Package usage lines accepted into the entitlement ledger.",
	})
	usageRejected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lumapos_package_usage_batches_rejected_total",
		Help: "Package usage batches rejected for overconsumption or validation.",
	})
	registry.MustRegister(requests, duration, ledgerWrites, usageAccepted, usageRejected)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		ledgerWrites:    ledgerWrites,
		usageAccepted:   usageAccepted,
		usageRejected:   usageRejected,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// LedgerWrite counts one committed write to the named ledger.
func (m *Metrics) LedgerWrite(ledger string) {
	if m == nil {
		return
	}
	m.ledgerWrites.WithLabelValues(ledger).Inc()
}

// UsageAccepted counts accepted package usage lines.
func (m *Metrics) UsageAccepted(lines int) {
	if m == nil || lines <= 0 {
		return
	}
	m.usageAccepted.Add(float64(lines))
}

// UsageRejected counts one rejected package usage batch.
func (m *Metrics) UsageRejected() {
	if m == nil {
		return
	}
	m.usageRejected.Inc()
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
