// Package metrics defines the Prometheus collectors exported on /metrics.
// All recording methods are safe to call on a nil *Metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "chorechart"

// Metrics holds the service's collectors
type Metrics struct {
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	taskTransitions  *prometheus.CounterVec
	pointsEntries    *prometheus.CounterVec
	notifications    *prometheus.CounterVec
	outboxDeliveries *prometheus.CounterVec
	llmRequests      *prometheus.CounterVec
}

// New registers the collectors with reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		taskTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "transitions_total",
			Help:      "Successful task lifecycle operations.",
		}, []string{"operation"}),
		pointsEntries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "points",
			Name:      "ledger_entries_total",
			Help:      "Ledger entries appended by kind.",
		}, []string{"kind"}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "created_total",
			Help:      "Notifications created or enqueued by channel.",
		}, []string{"channel"}),
		outboxDeliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "deliveries_total",
			Help:      "Outbound delivery attempts by channel and result.",
		}, []string{"channel", "result"}),
		llmRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assistant",
			Name:      "llm_requests_total",
			Help:      "LLM completion calls by result.",
		}, []string{"result"}),
	}
}

// ObserveHTTP records one handled request
func (m *Metrics) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// TaskTransition counts a successful task operation such as "verify"
func (m *Metrics) TaskTransition(operation string) {
	if m == nil {
		return
	}
	m.taskTransitions.WithLabelValues(operation).Inc()
}

// LedgerEntry counts an appended ledger row
func (m *Metrics) LedgerEntry(kind string) {
	if m == nil {
		return
	}
	m.pointsEntries.WithLabelValues(kind).Inc()
}

// Notification counts a created in-app notification or enqueued message
func (m *Metrics) Notification(channel string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(channel).Inc()
}

// OutboxDelivery records a delivery attempt result: "delivered", "retry" or "dead_letter"
func (m *Metrics) OutboxDelivery(channel, result string) {
	if m == nil {
		return
	}
	m.outboxDeliveries.WithLabelValues(channel, result).Inc()
}

// LLMRequest records an LLM call result
func (m *Metrics) LLMRequest(result string) {
	if m == nil {
		return
	}
	m.llmRequests.WithLabelValues(result).Inc()
}
