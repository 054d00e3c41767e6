package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes application-level instruments.
type Metrics struct {
	SyncRuns          *prometheus.CounterVec
	RemoteCalls       *prometheus.CounterVec
	WebhookDeliveries *prometheus.CounterVec
}

// NewRegistry builds the prometheus registry backing /metrics.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// New registers the bridge instruments on the given registry.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SyncRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pretix_bridge_sync_runs_total",
			Help: "Synchronization runs by outcome.",
		}, []string{"status"}),
		RemoteCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pretix_bridge_remote_calls_total",
			Help: "Outbound pretix API calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		WebhookDeliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pretix_bridge_webhook_deliveries_total",
			Help: "Inbound webhook deliveries by action and outcome.",
		}, []string{"action", "outcome"}),
	}
}
