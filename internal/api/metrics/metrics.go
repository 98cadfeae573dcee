// Package metrics defines and registers all custom Prometheus metrics for the
// planner API. It is the single source of truth for metric names, labels, and
// help strings.
//
// Metrics are registered with the default registry through promauto when the
// package is first imported.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "planner"

// ── Auth metrics ──────────────────────────────────────────────────────────────

// AuthGateOutcomesTotal counts AuthGate decisions.
// Label:
//   - outcome: "access" (valid access token), "refreshed" (new access token
//     minted from a session), "rejected"
var AuthGateOutcomesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_gate_outcomes_total",
		Help:      "Total number of authentication gate decisions, by outcome.",
	},
	[]string{"outcome"},
)

// LoginsTotal counts login attempts.
// Label:
//   - result: "success", "invalid_credentials", "email_not_validated", "error"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// ── Plan metrics ──────────────────────────────────────────────────────────────

// PlanAccessDecisionsTotal counts plan permission checks.
// Labels:
//   - gate: "read" or "write"
//   - decision: "allowed", "not_member", "read_only", "error"
var PlanAccessDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "plan_access_decisions_total",
		Help:      "Total number of plan access decisions, by gate and decision.",
	},
	[]string{"gate", "decision"},
)

// InvitationAcceptancesTotal counts invitation acceptance attempts.
// Label:
//   - result: "accepted", "malformed", "not_found", "already_accepted",
//     "expired", "already_member", "error"
var InvitationAcceptancesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invitation_acceptances_total",
		Help:      "Total number of invitation acceptance attempts, by result.",
	},
	[]string{"result"},
)

// ── Mail metrics ──────────────────────────────────────────────────────────────

// MailsSentTotal counts mail deliveries handed to the provider.
// Label:
//   - result: "sent", "failed" (all attempts exhausted) or "dropped"
//     (still queued when the shutdown drain timed out)
var MailsSentTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mails_sent_total",
		Help:      "Total number of outbound mails, by delivery result.",
	},
	[]string{"result"},
)

// MailQueueDepth tracks the number of mails waiting in each worker channel.
// Label:
//   - worker_id: numeric worker index
var MailQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "mail_queue_depth",
		Help:      "Current number of mails pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// MailDeliveryDuration measures a single provider send, retries included.
var MailDeliveryDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "mail_delivery_duration_seconds",
		Help:      "Duration of mail delivery from dequeue to provider acknowledgement.",
		Buckets:   prometheus.DefBuckets,
	},
)
