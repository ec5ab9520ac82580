// Package metrics exposes Prometheus metrics for the campaign engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for wadrip
type Metrics struct {
	MessagesSentTotal       *prometheus.CounterVec
	MessagesFailedTotal     *prometheus.CounterVec
	RepliesTotal            *prometheus.CounterVec
	FollowUpsScheduledTotal *prometheus.CounterVec
	FollowUpsCancelledTotal *prometheus.CounterVec
	DispatchBatchSize       prometheus.Histogram
	CampaignsRunning        prometheus.Gauge
	QueuePending            prometheus.Gauge

	registry *prometheus.Registry
}

// New creates a Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		MessagesSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wadrip_messages_sent_total",
				Help: "Total number of messages accepted by the transport",
			},
			[]string{"campaign", "sequence"},
		),
		MessagesFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wadrip_messages_failed_total",
				Help: "Total number of messages rejected by the transport",
			},
			[]string{"campaign"},
		),
		RepliesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wadrip_replies_total",
				Help: "Total number of inbound outcomes applied to campaigns",
			},
			[]string{"campaign", "kind"},
		),
		FollowUpsScheduledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wadrip_followups_scheduled_total",
				Help: "Total number of follow-up items enqueued",
			},
			[]string{"campaign"},
		),
		FollowUpsCancelledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wadrip_followups_cancelled_total",
				Help: "Total number of pending follow-up items deleted after a response",
			},
			[]string{"campaign"},
		),
		DispatchBatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "wadrip_dispatch_batch_size",
				Help:    "Number of eligible items returned per dispatch tick",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
			},
		),
		CampaignsRunning: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "wadrip_campaigns_running",
				Help: "Number of campaigns currently in the running state",
			},
		),
		QueuePending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "wadrip_queue_pending",
				Help: "Pending queue items across running campaigns",
			},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.MessagesSentTotal,
		m.MessagesFailedTotal,
		m.RepliesTotal,
		m.FollowUpsScheduledTotal,
		m.FollowUpsCancelledTotal,
		m.DispatchBatchSize,
		m.CampaignsRunning,
		m.QueuePending,
	)

	return m
}

// Handler returns the HTTP handler serving the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
