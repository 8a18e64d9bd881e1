package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Auth event outcomes recorded by Metrics.AuthEvent.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeThrottled = "throttled"
)

// Metrics holds the Prometheus collectors of the HTTP boundary.
type Metrics struct {
	gatherer prometheus.Gatherer

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inflight        prometheus.Gauge
	authEvents      *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg. A nil reg means the default
// Prometheus registry.
func NewMetrics(reg *prometheus.Registry) (*Metrics, error) {
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if reg != nil {
		registerer, gatherer = reg, reg
	}

	m := &Metrics{gatherer: gatherer}

	m.requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of processed HTTP requests.",
	}, []string{"method", "path", "status"})

	m.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	m.inflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_inflight_requests",
		Help: "HTTP requests currently being served.",
	})

	m.authEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fastid_auth_events_total",
		Help: "Authentication operations by outcome.",
	}, []string{"operation", "outcome"})

	var err error
	if m.requestsTotal, err = registerCollector(registerer, m.requestsTotal); err != nil {
		return nil, err
	}
	if m.requestDuration, err = registerCollector(registerer, m.requestDuration); err != nil {
		return nil, err
	}
	if m.inflight, err = registerCollector(registerer, m.inflight); err != nil {
		return nil, err
	}
	if m.authEvents, err = registerCollector(registerer, m.authEvents); err != nil {
		return nil, err
	}
	return m, nil
}

// registerCollector registers c, reusing the collector already registered
// under the same descriptor.
func registerCollector[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// AuthEvent counts one authentication operation.
func (m *Metrics) AuthEvent(operation, outcome string) {
	if m == nil {
		return
	}
	m.authEvents.WithLabelValues(operation, outcome).Inc()
}

// Middleware records request counts and latency labelled by route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.inflight.Inc()
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			m.inflight.Dec()

			path := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				path = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.requestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
			m.requestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		}()

		next.ServeHTTP(ww, r)
	})
}
