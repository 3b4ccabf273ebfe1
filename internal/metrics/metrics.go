package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studybuddy_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "studybuddy_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	UsersRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "studybuddy_users_registered_total",
			Help: "Total users registered",
		},
	)

	KeysPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "studybuddy_public_keys_published_total",
			Help: "Total public keys published to the directory",
		},
	)

	EnvelopesStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studybuddy_envelopes_stored_total",
			Help: "Total envelopes appended to the conversation log",
		},
		[]string{"via"}, // "channel" or "rest"
	)

	EnvelopesDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "studybuddy_envelopes_delivered_total",
			Help: "Total envelopes forwarded to an online receiver",
		},
	)

	EnvelopesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studybuddy_envelopes_rejected_total",
			Help: "Total envelopes rejected before persistence",
		},
		[]string{"reason"},
	)

	// Presence metrics
	ConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "studybuddy_ws_connections_open",
			Help: "Currently open websocket connections",
		},
	)

	UsersOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "studybuddy_users_online",
			Help: "Users currently bound in the presence table",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studybuddy_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"category"},
	)
)
