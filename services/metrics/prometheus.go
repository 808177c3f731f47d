// Package metricsvc exposes the store, bulk run and notification counters to Prometheus.
package metricsvc

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/schoolbus/core/collection"
	"github.com/trezcool/schoolbus/core/notification"
)

const namespace = "schoolbus"

type Prometheus struct {
	registry *prometheus.Registry

	mutations     *prometheus.CounterVec
	mutationTime  *prometheus.HistogramVec
	bulkRuns      *prometheus.CounterVec
	bulkItems     *prometheus.CounterVec
	notifications *prometheus.CounterVec
	recipients    *prometheus.CounterVec
}

var (
	_ collection.Metrics   = (*Prometheus)(nil)
	_ notification.Metrics = (*Prometheus)(nil)
)

// NewPrometheus registers the collectors on a fresh registry, along with the Go and process collectors.
func NewPrometheus() *Prometheus {
	m := &Prometheus{
		registry: prometheus.NewRegistry(),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Settled optimistic mutations.",
		}, []string{"collection", "op", "outcome"}),
		mutationTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "mutation_duration_seconds",
			Help:      "Time between applying a mutation locally and its remote settlement.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"collection", "op"}),
		bulkRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bulk_runs_total",
			Help:      "Bulk runs by result (ok, partial, failed).",
		}, []string{"label", "result"}),
		bulkItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bulk_items_total",
			Help:      "Items processed by bulk runs.",
		}, []string{"label", "outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications handled, by kind and final status.",
		}, []string{"kind", "status"}),
		recipients: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_recipients_total",
			Help:      "Emails handed to the email service.",
		}, []string{"kind"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.mutations, m.mutationTime, m.bulkRuns, m.bulkItems, m.notifications, m.recipients,
	)
	return m
}

func (m *Prometheus) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Prometheus) ObserveMutation(coll, op, outcome string, d time.Duration) {
	m.mutations.WithLabelValues(coll, op, outcome).Inc()
	m.mutationTime.WithLabelValues(coll, op).Observe(d.Seconds())
}

func (m *Prometheus) ObserveBulkRun(s collection.Summary) {
	label := s.Label
	if label == "" {
		label = "bulk run"
	}

	result := "ok"
	switch {
	case s.Failure > 0 && s.Success == 0:
		result = "failed"
	case s.Failure > 0:
		result = "partial"
	}
	m.bulkRuns.WithLabelValues(label, result).Inc()
	m.bulkItems.WithLabelValues(label, "success").Add(float64(s.Success))
	m.bulkItems.WithLabelValues(label, "failure").Add(float64(s.Failure))
}

func (m *Prometheus) ObserveNotification(kind, status string, recipients int) {
	m.notifications.WithLabelValues(kind, status).Inc()
	m.recipients.WithLabelValues(kind).Add(float64(recipients))
}
