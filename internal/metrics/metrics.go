package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TaskTransitions counts lifecycle transitions by edge.
	TaskTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "botbot_task_transitions_total",
		Help: "Task lifecycle transitions applied, labelled by from/to status.",
	}, []string{"from", "to"})

	// TasksCreated counts tasks posted by buyers.
	TasksCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "botbot_tasks_created_total",
		Help: "Tasks created.",
	})

	// BotsRegistered counts bot registrations.
	BotsRegistered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "botbot_bots_registered_total",
		Help: "Bots registered.",
	})

	// ClaimConflicts counts claims lost to the conditional update, i.e.
	// a second bot racing for an already-claimed task.
	ClaimConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "botbot_claim_conflicts_total",
		Help: "Claim attempts rejected because the task was no longer open.",
	})

	// AutoConfirms counts deliveries confirmed by the sweep rather than
	// the buyer.
	AutoConfirms = promauto.NewCounter(prometheus.CounterOpts{
		Name: "botbot_auto_confirms_total",
		Help: "Deliveries auto-confirmed after the 48h window lapsed.",
	})

	// EscrowCallErrors counts failed mirror calls to the escrow relayer.
	EscrowCallErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "botbot_escrow_call_errors_total",
		Help: "Escrow contract mirror calls that failed, by method.",
	}, []string{"method"})
)
