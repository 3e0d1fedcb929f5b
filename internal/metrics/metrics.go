// Package metrics wraps the Prometheus collectors driftroomd exposes as a
// single pre-registered Registry, rather than scattering MustRegister
// calls through the rest of the codebase.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry groups every collector driftroomd records against.
type Registry struct {
	ActiveConnections prometheus.Gauge
	ActiveRooms       prometheus.Gauge

	MessagesReceived prometheus.Counter
	MessagesSent     prometheus.Counter
	OutboxDropped    prometheus.Counter
	RateLimited      prometheus.Counter

	RoomsEvicted prometheus.Counter

	ReplicationErrors prometheus.Counter
}

// NewRegistry registers and returns driftroomd's Prometheus collectors.
func NewRegistry() *Registry {
	return &Registry{
		ActiveConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "driftroom_connections_active",
			Help: "Number of currently open client connections.",
		}),
		ActiveRooms: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "driftroom_rooms_active",
			Help: "Number of rooms currently held open in the directory.",
		}),
		MessagesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "driftroom_messages_received_total",
			Help: "Total inbound messages processed across all rooms.",
		}),
		MessagesSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "driftroom_messages_sent_total",
			Help: "Total outbound messages written to client sockets.",
		}),
		OutboxDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "driftroom_outbox_dropped_total",
			Help: "Total outbound messages dropped because a connection's outbox was full.",
		}),
		RateLimited: promauto.NewCounter(prometheus.CounterOpts{
			Name: "driftroom_rate_limited_total",
			Help: "Total inbound messages rejected by the per-connection rate limiter.",
		}),
		RoomsEvicted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "driftroom_rooms_evicted_total",
			Help: "Total rooms removed from the directory for being idle past their timeout.",
		}),
		ReplicationErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "driftroom_replication_errors_total",
			Help: "Total errors writing a mutation to, or clearing an evicted room from, the replication store.",
		}),
	}
}

// Handler returns the HTTP handler serving the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.Handler()
}
