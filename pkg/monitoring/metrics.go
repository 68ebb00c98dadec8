package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Appointment transition metrics
	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appointment_transitions_total",
			Help: "Total number of appointment transition attempts",
		},
		[]string{"action", "outcome"},
	)

	// Notification metrics
	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Total number of notification records written",
		},
		[]string{"kind", "role", "status"},
	)

	// Sweep metrics
	sweepMarkedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sweep_marked_missed_total",
			Help: "Total number of appointments the sweep marked as missed",
		},
	)

	sweepRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweep_runs_total",
			Help: "Total number of missed-appointment sweep runs",
		},
		[]string{"status"},
	)

	// Chat metrics
	chatMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Total number of chat messages persisted",
		},
		[]string{"kind"},
	)

	chatBroadcastsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_broadcasts_total",
			Help: "Total number of live chat broadcast deliveries",
		},
		[]string{"status"},
	)

	wsConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_connections_active",
			Help: "Number of active chat WebSocket connections",
		},
	)
)

func init() {
	prometheus.MustRegister(
		transitionsTotal,
		notificationsTotal,
		sweepMarkedTotal,
		sweepRunsTotal,
		chatMessagesTotal,
		chatBroadcastsTotal,
		wsConnectionsActive,
	)
}

// RecordTransition records an appointment transition attempt
func RecordTransition(action, outcome string) {
	transitionsTotal.WithLabelValues(action, outcome).Inc()
}

// RecordNotification records a notification write
func RecordNotification(kind, role, status string) {
	notificationsTotal.WithLabelValues(kind, role, status).Inc()
}

// RecordSweep records the outcome of a sweep run
func RecordSweep(marked int, err error) {
	if err != nil {
		sweepRunsTotal.WithLabelValues("error").Inc()
		return
	}
	sweepRunsTotal.WithLabelValues("success").Inc()
	sweepMarkedTotal.Add(float64(marked))
}

// RecordChatMessage records a persisted chat message
func RecordChatMessage(kind string) {
	chatMessagesTotal.WithLabelValues(kind).Inc()
}

// RecordBroadcast records a single broadcast delivery attempt
func RecordBroadcast(ok bool) {
	if ok {
		chatBroadcastsTotal.WithLabelValues("delivered").Inc()
	} else {
		chatBroadcastsTotal.WithLabelValues("failed").Inc()
	}
}

// ConnectionOpened tracks a new WebSocket connection
func ConnectionOpened() { wsConnectionsActive.Inc() }

// ConnectionClosed tracks a closed WebSocket connection
func ConnectionClosed() { wsConnectionsActive.Dec() }

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
