package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	DropMalformed = "malformed"
	DropNoRoom    = "no_room"
	DropUnknown   = "unknown_action"
	DropTimeout   = "send_timeout"
	DropGone      = "endpoint_gone"
)

var (
	registerOnce sync.Once

	Rooms = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "scenesync",
		Subsystem: "relay",
		Name:      "rooms",
		Help:      "Live rooms.",
	})
	Connections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "scenesync",
		Subsystem: "relay",
		Name:      "connections",
		Help:      "Open relay connections.",
	})
	MessagesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scenesync",
			Subsystem: "relay",
			Name:      "messages_received_total",
			Help:      "Decoded inbound messages by action.",
		},
		[]string{"action"},
	)
	MessagesForwarded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "scenesync",
		Subsystem: "relay",
		Name:      "messages_forwarded_total",
		Help:      "Update messages delivered to room members.",
	})
	MessagesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scenesync",
			Subsystem: "relay",
			Name:      "messages_dropped_total",
			Help:      "Messages dropped by the relay, by reason.",
		},
		[]string{"reason"},
	)
)

func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(Rooms, Connections, MessagesReceived, MessagesForwarded, MessagesDropped)
	})
}

func RecordReceived(action string) {
	if action == "" {
		action = "none"
	}
	MessagesReceived.WithLabelValues(action).Inc()
}

func RecordDropped(reason string) {
	MessagesDropped.WithLabelValues(reason).Inc()
}
