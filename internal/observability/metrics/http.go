package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "demakai"

// knownRoutes bounds the path label; anything else is reported as "other".
var knownRoutes = map[string]struct{}{
	"/webhook": {},
	"/v1/chat": {},
	"/healthz": {},
	"/health":  {},
	"/metrics": {},
}

// HTTPServerMetrics instruments the api process: request traffic plus the
// webhook intake funnel.
type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	inFlight prometheus.Gauge
	webhooks *prometheus.CounterVec
	unqueued prometheus.Counter
	now      func() time.Time
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	labels := prometheus.Labels{"service": service}
	m := &HTTPServerMetrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "requests_total",
			Help:        "HTTP requests by route and status code.",
			ConstLabels: labels,
		}, []string{"method", "path", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "request_duration_seconds",
			Help:        "HTTP request latency by route.",
			ConstLabels: labels,
			// /v1/chat waits for the LLM, so the tail is long.
			Buckets: []float64{.005, .025, .1, .5, 1, 2.5, 5, 15, 30, 60, 120, 240},
		}, []string{"method", "path"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Requests currently being served.",
			ConstLabels: labels,
		}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "webhook",
			Name:        "events_total",
			Help:        "Gateway webhook events by disposition.",
			ConstLabels: labels,
		}, []string{"disposition"}),
		unqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "webhook",
			Name:        "publish_failures_total",
			Help:        "Inbound messages that could not be queued.",
			ConstLabels: labels,
		}),
		now: time.Now,
	}
	m.registry.MustRegister(
		m.requests, m.latency, m.inFlight, m.webhooks, m.unqueued,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registerer lets in-process components such as the bot add their collectors.
func (m *HTTPServerMetrics) Registerer() prometheus.Registerer {
	return m.registry
}

// Middleware counts every request under its route and final status code.
func (m *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := m.now()
		route := routeLabel(r.URL.Path)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		m.inFlight.Inc()
		defer func() {
			m.inFlight.Dec()
			m.requests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
			m.latency.WithLabelValues(r.Method, route).Observe(m.now().Sub(started).Seconds())
		}()
		next.ServeHTTP(rec, r)
	})
}

func routeLabel(path string) string {
	if _, ok := knownRoutes[path]; ok {
		return path
	}
	return "other"
}

// RecordWebhook counts one webhook event: received, ignored, invalid or failed.
func (m *HTTPServerMetrics) RecordWebhook(disposition string) {
	if disposition == "" {
		disposition = "unknown"
	}
	m.webhooks.WithLabelValues(disposition).Inc()
}

func (m *HTTPServerMetrics) IncPublishFailure() {
	m.unqueued.Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusRecorder) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusRecorder) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := w.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("metrics: response writer cannot be hijacked")
}
