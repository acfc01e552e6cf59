package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Domain counters exposed on /metrics next to the HTTP instrumentation.
var (
	metricReportsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_reports_submitted_total",
		Help: "Reports accepted at intake, by report type and duplicate verdict.",
	}, []string{"report_type", "duplicate"})

	metricActionsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_actions_executed_total",
		Help: "Decisions executed, by action.",
	}, []string{"action"})

	metricSlaAlerts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_sla_alerts_total",
		Help: "SLA alerts raised by the sweep, by threshold.",
	}, []string{"threshold"})

	metricSlaBreaches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moderation_sla_breaches_total",
		Help: "SLA breach incidents opened by the sweep.",
	})

	metricAppealsFiled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moderation_appeals_filed_total",
		Help: "Appeals accepted against moderation decisions.",
	})

	metricExports = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_sor_exports_total",
		Help: "Transparency Database export attempts, by outcome.",
	}, []string{"outcome"})
)
