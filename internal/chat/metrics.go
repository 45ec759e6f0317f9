package chat

import "github.com/prometheus/client_golang/prometheus"

var (
	messagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paddock_chat_messages_sent_total",
			Help: "Messages accepted for persistence, by room.",
		},
		[]string{"room"},
	)

	messagesRendered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paddock_chat_messages_rendered_total",
			Help: "Messages rendered to a session, by room.",
		},
		[]string{"room"},
	)

	duplicatesSuppressed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "paddock_chat_duplicates_suppressed_total",
			Help: "Incoming records dropped by the dedup window.",
		},
	)

	malformedDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "paddock_chat_malformed_dropped_total",
			Help: "Incoming records dropped for missing required fields.",
		},
	)

	sendsBlocked = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "paddock_chat_sends_blocked_total",
			Help: "Send attempts ignored because a send was already in flight.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		messagesSent,
		messagesRendered,
		duplicatesSuppressed,
		malformedDropped,
		sendsBlocked,
	)
}
