package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_http_requests_total",
			Help: "Total number of http requests handled by the service.",
		},
		[]string{"path", "method", "code"},
	)

	RequestsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_requests_created_total",
			Help: "Service requests accepted by intake.",
		},
	)

	// ClaimAttemptsTotal is labelled by outcome: won, lost, error.
	ClaimAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_claim_attempts_total",
			Help: "Claim attempts by outcome.",
		},
		[]string{"outcome"},
	)

	AdminOverridesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_admin_overrides_total",
			Help: "Forced status changes by target status.",
		},
		[]string{"status"},
	)

	OpenRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_open_requests",
			Help: "Requests currently waiting in SEARCHING.",
		},
	)
)

const (
	ClaimOutcomeWon   = "won"
	ClaimOutcomeLost  = "lost"
	ClaimOutcomeError = "error"
)
