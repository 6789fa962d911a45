package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/muhshi/demakai-bot/internal/core/domain"
)

// BotMetrics records mode routing, retrieval and upstream outcomes. It is shared by the
// bot core and the embedding service of one process.
type BotMetrics struct {
	messagesTotal   *prometheus.CounterVec
	messageDuration *prometheus.HistogramVec
	candidates      *prometheus.HistogramVec
	fallbackTotal   *prometheus.CounterVec
	rateLimited     prometheus.Counter
	cacheTotal      *prometheus.CounterVec
	upstreamErrors  *prometheus.CounterVec
	retries         *prometheus.CounterVec
	breakerOpen     *prometheus.GaugeVec
}

func NewBotMetrics(registerer prometheus.Registerer, service string) *BotMetrics {
	labels := prometheus.Labels{"service": service}
	m := &BotMetrics{
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "bot",
			Name:        "messages_total",
			Help:        "Handled messages by mode and outcome.",
			ConstLabels: labels,
		}, []string{"mode", "outcome"}),
		messageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "bot",
			Name:        "message_duration_seconds",
			Help:        "Time to produce a reply by mode.",
			Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30, 60, 120, 240},
			ConstLabels: labels,
		}, []string{"mode"}),
		candidates: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "retrieval",
			Name:        "candidates",
			Help:        "Candidates handed to synthesis per lookup.",
			Buckets:     []float64{0, 1, 2, 3, 5, 8, 10, 15},
			ConstLabels: labels,
		}, []string{"mode"}),
		fallbackTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "synthesis",
			Name:        "fallback_total",
			Help:        "Answers rendered without the LLM after a failure.",
			ConstLabels: labels,
		}, []string{"mode"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "bot",
			Name:        "rate_limited_total",
			Help:        "Messages rejected by the per-user limiter.",
			ConstLabels: labels,
		}),
		cacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "embedding",
			Name:        "cache_lookups_total",
			Help:        "Embedding cache lookups by result.",
			ConstLabels: labels,
		}, []string{"result"}),
		upstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "upstream",
			Name:        "errors_total",
			Help:        "Failed calls to embedding and LLM providers.",
			ConstLabels: labels,
		}, []string{"component"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "upstream",
			Name:        "retries_total",
			Help:        "Retried upstream calls by operation.",
			ConstLabels: labels,
		}, []string{"operation"}),
		breakerOpen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "upstream",
			Name:        "circuit_open",
			Help:        "1 while the circuit breaker of an operation is open.",
			ConstLabels: labels,
		}, []string{"operation"}),
	}

	registerer.MustRegister(
		m.messagesTotal,
		m.messageDuration,
		m.candidates,
		m.fallbackTotal,
		m.rateLimited,
		m.cacheTotal,
		m.upstreamErrors,
		m.retries,
		m.breakerOpen,
	)
	return m
}

func (m *BotMetrics) ObserveMessage(mode domain.Mode, outcome string, duration time.Duration) {
	m.messagesTotal.WithLabelValues(modeLabel(mode), outcome).Inc()
	m.messageDuration.WithLabelValues(modeLabel(mode)).Observe(duration.Seconds())
}

func (m *BotMetrics) ObserveCandidates(mode domain.Mode, count int) {
	m.candidates.WithLabelValues(modeLabel(mode)).Observe(float64(count))
}

func (m *BotMetrics) IncFallback(mode domain.Mode) {
	m.fallbackTotal.WithLabelValues(modeLabel(mode)).Inc()
	m.upstreamErrors.WithLabelValues("llm").Inc()
}

func (m *BotMetrics) IncRateLimited() {
	m.rateLimited.Inc()
}

func (m *BotMetrics) ObserveEmbeddingCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheTotal.WithLabelValues(result).Inc()
}

func (m *BotMetrics) IncUpstreamError(component string) {
	if component == "" {
		component = "unknown"
	}
	m.upstreamErrors.WithLabelValues(component).Inc()
}

func (m *BotMetrics) ObserveRetry(operation string) {
	m.retries.WithLabelValues(operation).Inc()
}

func (m *BotMetrics) ObserveBreakerState(operation string, open bool) {
	v := 0.0
	if open {
		v = 1
	}
	m.breakerOpen.WithLabelValues(operation).Set(v)
}

func modeLabel(mode domain.Mode) string {
	if mode == "" {
		return string(domain.ModeNatural)
	}
	return string(mode)
}
