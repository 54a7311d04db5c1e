// Package metrics provides Prometheus metrics for the Fale com RH subsystem.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks websocket connections currently registered in the hub.
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "falerh_realtime_connections",
			Help: "Number of websocket connections registered in the hub",
		},
	)

	// EventsDelivered counts events queued to connections, by event name.
	EventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "falerh_realtime_events_delivered_total",
			Help: "Events queued to websocket connections",
		},
		[]string{"event"},
	)

	// EventsDropped counts deliveries skipped because a connection's queue was full.
	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "falerh_realtime_events_dropped_total",
			Help: "Events dropped because the connection send queue was full",
		},
		[]string{"event"},
	)

	// BroadcastFailures counts phase-two failures after a committed write.
	BroadcastFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "falerh_broadcast_failures_total",
			Help: "Broadcasts that failed after the durable write committed",
		},
		[]string{"event"},
	)

	// Transitions counts applied conversation status changes by target
	// status. The source status is not known at commit time.
	Transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "falerh_conversation_transitions_total",
			Help: "Applied conversation status transitions, by target status",
		},
		[]string{"to"},
	)

	// Rejections counts operations that reported an expected failure.
	Rejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "falerh_operation_rejections_total",
			Help: "Conversation operations rejected with a reason",
		},
		[]string{"operation", "reason"},
	)
)

func RecordConnected()    { ActiveConnections.Inc() }
func RecordDisconnected() { ActiveConnections.Dec() }

func RecordDelivered(event string) { EventsDelivered.WithLabelValues(event).Inc() }
func RecordDropped(event string)   { EventsDropped.WithLabelValues(event).Inc() }

func RecordBroadcastFailure(event string) { BroadcastFailures.WithLabelValues(event).Inc() }

func RecordTransition(to string) { Transitions.WithLabelValues(to).Inc() }

func RecordRejection(operation, reason string) {
	Rejections.WithLabelValues(operation, reason).Inc()
}
