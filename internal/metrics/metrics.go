package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionsActive tracks the number of live websocket clients.
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatter_ws_connections_active",
		Help: "Number of currently connected websocket clients.",
	})

	// MessagesSent counts persisted messages, regardless of path.
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatter_messages_sent_total",
		Help: "Messages persisted through the send path.",
	})

	// MessagesDelivered counts live pushes that reached a receiver.
	MessagesDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatter_messages_delivered_total",
		Help: "Messages delivered to a live receiver connection.",
	})

	// EventsReceived counts client events by type.
	EventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatter_ws_events_received_total",
		Help: "Websocket events received from clients, by event type.",
	}, []string{"type"})
)
