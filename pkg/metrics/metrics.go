package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the HTTP collectors and the domain counters.
type Metrics struct {
	ReqTotal *prometheus.CounterVec
	ReqDur   *prometheus.HistogramVec
	InFlight prometheus.Gauge

	Quotations   *prometheus.CounterVec
	Documents    *prometheus.CounterVec
	OTPEvents    *prometheus.CounterVec
	LogoCleanups *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers every collector on reg. A nil reg gets a private registry so
// tests can build as many instances as they like.
func New(namespace string, reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		ReqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests handled by the server.",
		}, []string{"method", "route", "status"}),
		ReqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency distribution in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}, []string{"method", "route"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		Quotations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotations_total",
			Help:      "Quotation writes by operation.",
		}, []string{"operation"}),
		Documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_rendered_total",
			Help:      "Rendered quotation documents by format and outcome.",
		}, []string{"format", "outcome"}),
		OTPEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_events_total",
			Help:      "Password reset OTP events.",
		}, []string{"event"}),
		LogoCleanups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logo_cleanups_total",
			Help:      "Best-effort logo deletions by outcome.",
		}, []string{"outcome"}),
		gatherer: reg,
	}
	mustRegister(reg, m.ReqTotal, m.ReqDur, m.InFlight, m.Quotations, m.Documents, m.OTPEvents, m.LogoCleanups)
	return m
}

func mustRegister(reg prometheus.Registerer, cs ...prometheus.Collector) {
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			panic(err)
		}
	}
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.ReqTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.ReqDur.WithLabelValues(method, route).Observe(float64(d) / float64(time.Millisecond))
}

// QuotationWritten counts a create, update or delete.
func (m *Metrics) QuotationWritten(operation string) {
	if m == nil {
		return
	}
	m.Quotations.WithLabelValues(operation).Inc()
}

// DocumentRendered counts a render attempt.
func (m *Metrics) DocumentRendered(format string, err error) {
	if m == nil {
		return
	}
	m.Documents.WithLabelValues(format, outcome(err)).Inc()
}

// OTP counts an OTP lifecycle event such as "sent" or "verified".
func (m *Metrics) OTP(event string) {
	if m == nil {
		return
	}
	m.OTPEvents.WithLabelValues(event).Inc()
}

// LogoCleanup counts a best-effort logo release.
func (m *Metrics) LogoCleanup(err error) {
	if m == nil {
		return
	}
	m.LogoCleanups.WithLabelValues(outcome(err)).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
