// Package observability exposes Prometheus metrics for the HTTP surface and
// the posting engines.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects application metrics behind one registry.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	postingsTotal   *prometheus.CounterVec
	reversalsTotal  *prometheus.CounterVec
	rejectionsTotal *prometheus.CounterVec
	matchesTotal    prometheus.Counter
}

// NewMetrics initialises the registry and the base metric set.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "keystone_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "keystone_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	postings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "keystone_ledger_postings_total",
		Help: "Ledger postings by ledger (gl, stock, payments).",
	}, []string{"ledger"})
	reversals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "keystone_ledger_reversals_total",
		Help: "Ledger reversals by ledger.",
	}, []string{"ledger"})
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "keystone_posting_rejections_total",
		Help: "Voucher submissions rejected before posting, by reason.",
	}, []string{"reason"})
	matches := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "keystone_bank_matches_total",
		Help: "Confirmed bank reconciliation matches.",
	})
	registry.MustRegister(requests, duration, postings, reversals, rejections, matches)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		postingsTotal:   postings,
		reversalsTotal:  reversals,
		rejectionsTotal: rejections,
		matchesTotal:    matches,
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

// Middleware records request metrics for every HTTP request.
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

// CountPosting increments the posting counter for one ledger.
func (m *Metrics) CountPosting(ledger string) {
	if m == nil {
		return
	}
	m.postingsTotal.WithLabelValues(ledger).Inc()
}

// CountReversal increments the reversal counter for one ledger.
func (m *Metrics) CountReversal(ledger string) {
	if m == nil {
		return
	}
	m.reversalsTotal.WithLabelValues(ledger).Inc()
}

// CountRejection increments the rejection counter for one reason.
func (m *Metrics) CountRejection(reason string) {
	if m == nil {
		return
	}
	m.rejectionsTotal.WithLabelValues(reason).Inc()
}

// CountMatch increments the confirmed bank match counter.
func (m *Metrics) CountMatch() {
	if m == nil {
		return
	}
	m.matchesTotal.Inc()
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
