package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure|banned).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillpix_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// ActiveSessions tracks active sessions (not expired/revoked).
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "skillpix_active_sessions",
			Help: "Number of active sessions",
		},
	)

	// NotificationEvents counts notification lifecycle events by kind
	// (created|read|unread|archived|deleted|bulk_update|bulk_delete|expired).
	NotificationEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillpix_notification_events_total",
			Help: "Total number of notification lifecycle events",
		},
		[]string{"kind"},
	)

	// AdminActions counts privileged back-office operations by action and result.
	AdminActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillpix_admin_actions_total",
			Help: "Total number of admin actions",
		},
		[]string{"action", "result"},
	)

	// ContactSubmissions counts contact form submissions by delivery result.
	ContactSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillpix_contact_submissions_total",
			Help: "Total number of contact form submissions",
		},
		[]string{"result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skillpix_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
