// Package metrics holds the hub's operational counters. The collector is
// an explicit object owned by the connection supervisor and broadcast
// router, registered on a caller-supplied registry rather than the
// package-global default.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Collector struct {
	ConnectionsActive prometheus.Gauge
	MessagesProcessed *prometheus.CounterVec
	EventsRejected    *prometheus.CounterVec
	RoomsActive       *prometheus.GaugeVec
	HistoryReplays    prometheus.Counter
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "synchub_connections_active",
			Help: "Number of currently connected clients",
		}),
		MessagesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "synchub_messages_processed_total",
			Help: "Total events accepted by the broadcast router",
		}, []string{"kind"}),
		EventsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "synchub_events_rejected_total",
			Help: "Total inbound events rejected before broadcast",
		}, []string{"category"}),
		RoomsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "synchub_rooms_active",
			Help: "Number of live rooms per kind",
		}, []string{"kind"}),
		HistoryReplays: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "synchub_history_replays_total",
			Help: "Total history replays delivered to joining connections",
		}),
	}
	reg.MustRegister(
		c.ConnectionsActive,
		c.MessagesProcessed,
		c.EventsRejected,
		c.RoomsActive,
		c.HistoryReplays,
	)
	return c
}
