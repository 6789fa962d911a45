package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics is the registry of the queue consumer: delivery outcomes, time spent
// per message and how long messages waited in NATS.
type WorkerMetrics struct {
	registry *prometheus.Registry
	now      func() time.Time

	processed *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	inFlight  prometheus.Gauge
	queueLag  prometheus.Histogram
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	labels := prometheus.Labels{"service": service}
	m := &WorkerMetrics{
		registry: prometheus.NewRegistry(),
		now:      time.Now,
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "messages_processed_total",
			Help:        "Inbound WhatsApp messages taken from the queue, by result.",
			ConstLabels: labels,
		}, []string{"result"}),
		// Bounded by MESSAGE_TIMEOUT (5m).
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "message_duration_seconds",
			Help:        "Time from dequeue to the last reply part sent.",
			Buckets:     []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 240, 300},
			ConstLabels: labels,
		}, []string{"result"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "messages_in_flight",
			Help:        "Messages currently being answered.",
			ConstLabels: labels,
		}),
		queueLag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "queue_lag_seconds",
			Help:        "Delay between webhook receipt and processing start.",
			Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
			ConstLabels: labels,
		}),
	}
	m.registry.MustRegister(
		m.processed,
		m.duration,
		m.inFlight,
		m.queueLag,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registerer lets the bot core add its series to the worker registry.
func (m *WorkerMetrics) Registerer() prometheus.Registerer {
	return m.registry
}

// Track marks a message as in flight and returns the completion callback. A zero
// receivedAt skips the queue lag sample.
func (m *WorkerMetrics) Track(receivedAt time.Time) func(err error) {
	started := m.now()
	if !receivedAt.IsZero() {
		if lag := started.Sub(receivedAt); lag >= 0 {
			m.queueLag.Observe(lag.Seconds())
		}
	}
	m.inFlight.Inc()

	return func(err error) {
		m.inFlight.Dec()
		result := "delivered"
		if err != nil {
			result = "failed"
		}
		m.processed.WithLabelValues(result).Inc()
		m.duration.WithLabelValues(result).Observe(m.now().Sub(started).Seconds())
	}
}
