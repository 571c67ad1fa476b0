// Package metrics exposes prometheus instrumentation for the chat hub.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors the hub and transport update.
type Metrics struct {
	ConnectedSessions prometheus.Gauge
	InboundEvents     *prometheus.CounterVec
	FanoutDeliveries  prometheus.Counter
	DroppedEvents     prometheus.Counter
}

// New registers the chat collectors with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ConnectedSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relaychat_connected_sessions",
			Help: "Number of live WebSocket sessions.",
		}),
		InboundEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relaychat_inbound_events_total",
			Help: "Inbound events dispatched to the hub, by kind.",
		}, []string{"kind"}),
		FanoutDeliveries: factory.NewCounter(prometheus.CounterOpts{
			Name: "relaychat_fanout_deliveries_total",
			Help: "Outbound events delivered to session channels.",
		}),
		DroppedEvents: factory.NewCounter(prometheus.CounterOpts{
			Name: "relaychat_dropped_events_total",
			Help: "Outbound events dropped because a session channel was full.",
		}),
	}
}
