// Package metrics exposes Prometheus instrumentation for the orchestration
// core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JoinAttempts counts registration attempts by outcome reason code.
	JoinAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_join_attempts_total",
			Help: "Registration attempts per outcome",
		},
		[]string{"reason"},
	)

	// RemindersArmed is the number of reminder jobs currently armed.
	RemindersArmed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reminders_armed",
			Help: "Reminder jobs currently armed in memory",
		},
	)

	// RemindersFired counts reminder jobs by final disposition.
	RemindersFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminders_total",
			Help: "Reminder jobs per disposition",
		},
		[]string{"disposition"}, // fired | dropped | cancelled
	)

	// TicketTransitions counts ticket session state transitions.
	TicketTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_transitions_total",
			Help: "Ticket session state transitions",
		},
		[]string{"to"},
	)

	// NotifyJobs counts outbound delivery jobs by type and status.
	NotifyJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_jobs_total",
			Help: "Outbound delivery jobs processed",
		},
		[]string{"type", "status"}, // status: ok | error
	)
)
