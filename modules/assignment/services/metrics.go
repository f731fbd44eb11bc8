package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	assignmentsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assignment_engine_assignments_created_total",
		Help: "Assignments created, by priority.",
	}, []string{"priority"})

	workItemsQueuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assignment_engine_work_items_queued_total",
		Help: "Work items parked on the pending queue, by priority.",
	}, []string{"priority"})

	queueDrainedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assignment_engine_queue_drained_total",
		Help: "Queue entries converted into assignments.",
	})

	escalationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assignment_engine_escalations_total",
		Help: "Escalations raised, split by manual and automatic.",
	}, []string{"automatic"})

	slaBreachesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assignment_engine_sla_breaches_total",
		Help: "Assignments observed past their SLA deadline by the sweep.",
	})

	stageMovesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assignment_engine_stage_moves_total",
		Help: "Workflow stage transitions, by target stage.",
	}, []string{"to_stage"})
)
