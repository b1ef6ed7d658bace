package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts handled HTTP requests by route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_http_requests_total",
		Help: "Total number of HTTP requests processed",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration observes request latency by route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settlement_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	// WebhookEventsTotal counts inbound gateway events by source and outcome
	// (processed, duplicate, failed, rejected).
	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_webhook_events_total",
		Help: "Inbound webhook events by source and outcome",
	}, []string{"source", "outcome"})

	// StageClaimsTotal counts scheduler stage claims by outcome (enqueued,
	// blocked, held, failed, lost_race).
	StageClaimsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_stage_claims_total",
		Help: "Release stage claim attempts by outcome",
	}, []string{"outcome"})

	// PayoutAttemptsTotal counts payout dispatch attempts by outcome (sent,
	// retry, dead).
	PayoutAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_payout_attempts_total",
		Help: "Payout job dispatch attempts by outcome",
	}, []string{"outcome"})

	// PayoutQueueLag observes how long jobs sat queued before being claimed.
	PayoutQueueLag = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "settlement_payout_queue_lag_seconds",
		Help:    "Time between job enqueue and claim",
		Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
	})
)
