package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// MessagesSent counts chat messages accepted by the message store.
	MessagesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_sent_total",
			Help: "Number of chat messages sent",
		},
	)

	// MessagesRecalled counts sender-initiated recalls.
	MessagesRecalled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_recalled_total",
			Help: "Number of chat messages recalled",
		},
	)

	// NotificationsPublished counts notifications published to the dispatcher,
	// partitioned by whether a live subscriber received them.
	NotificationsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_published_total",
			Help: "Number of notifications published",
		},
		[]string{"delivery"},
	)

	// LiveSubscribers tracks currently open live notification channels.
	LiveSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_live_subscribers",
			Help: "Number of open live notification channels",
		},
	)

	// RequestDuration tracks the duration of HTTP requests.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Time spent processing HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		MessagesSent,
		MessagesRecalled,
		NotificationsPublished,
		LiveSubscribers,
		RequestDuration,
	)
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
