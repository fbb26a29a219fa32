package chat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatcal",
			Name:      "chat_requests_total",
			Help:      "Chat requests by terminal state.",
		},
		[]string{"state"},
	)

	attemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatcal",
			Name:      "chat_attempts_total",
			Help:      "Chat attempts by outcome (ideas, event, auth_needed, failed).",
		},
		[]string{"outcome"},
	)
)
