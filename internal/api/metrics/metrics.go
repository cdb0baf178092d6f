// Package metrics defines and registers all custom Prometheus metrics for the
// DevJobs API. It is the single source of truth for metric names, labels, and
// help strings.
//
// Metrics are registered with the default Prometheus registry on package
// init through promauto and exposed on /metrics next to the echoprometheus
// HTTP metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "devjobs"

// ── Authentication metrics ────────────────────────────────────────────────────

// AuthAttemptsTotal counts login attempts.
// Label:
//   - result: "success", "invalid_credentials", "throttled" or "error"
var AuthAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_attempts_total",
		Help:      "Total number of login attempts, labelled by result.",
	},
	[]string{"result"},
)

// LoginDuration measures the time spent in the login handler. Unknown emails
// and wrong passwords should land in the same buckets.
var LoginDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "login_duration_seconds",
		Help:      "Duration of login requests, including password verification.",
		Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
	},
)

// ── Token metrics ─────────────────────────────────────────────────────────────

// TokensIssuedTotal counts bearer tokens handed out.
// Label:
//   - reason: "login", "refresh" or "admin"
var TokensIssuedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tokens_issued_total",
		Help:      "Total number of bearer tokens issued, by reason.",
	},
	[]string{"reason"},
)

// ExpiredTokensPurgedTotal counts tokens cleared by the expired-token purge.
var ExpiredTokensPurgedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "expired_tokens_purged_total",
		Help:      "Total number of expired tokens cleared by maintenance runs.",
	},
)

// ── Request gate metrics ──────────────────────────────────────────────────────

// GateDecisionsTotal counts request gate outcomes.
// Label:
//   - outcome: "public", "forwarded", "unauthenticated", "forbidden" or "error"
var GateDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gate_decisions_total",
		Help:      "Total number of request gate decisions, by outcome.",
	},
	[]string{"outcome"},
)
