// Package metrics defines and registers the custom Prometheus metrics of the
// authentication service. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered on the default registry at package init through
// promauto, so importing the package is enough.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "auth"

// ── Login flow ────────────────────────────────────────────────────────────────

// LoginOutcomesTotal counts the result of each login step.
// Labels:
//   - step: "credentials" or "mfa"
//   - outcome: the outcome kind returned to the client (e.g. "locked")
var LoginOutcomesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_outcomes_total",
		Help:      "Total number of login step results, by step and outcome.",
	},
	[]string{"step", "outcome"},
)

// LoginStepDuration measures how long one login step takes end-to-end,
// password hashing and store round-trips included.
// Label:
//   - step: "credentials" or "mfa"
var LoginStepDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "login_step_duration_seconds",
		Help:      "Duration of a login step from request to outcome.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"step"},
)

// ── Audit trail ───────────────────────────────────────────────────────────────

// AuthEventsTotal counts emitted audit events.
// Label:
//   - event: audit event kind (e.g. "password_failure", "account_lockout")
var AuthEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_total",
		Help:      "Total number of audit events emitted, by kind.",
	},
	[]string{"event"},
)

// AuditQueueDepth tracks the events waiting in each dispatcher worker channel.
// Label:
//   - worker_id: numeric worker index
var AuditQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "audit_queue_depth",
		Help:      "Current number of audit events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// AuditWriteErrorsTotal counts audit events that were not persisted.
// Label:
//   - reason: "queue_full" or "insert_failed"
var AuditWriteErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_write_errors_total",
		Help:      "Total number of audit events dropped or failed to persist.",
	},
	[]string{"reason"},
)
