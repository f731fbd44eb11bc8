package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/assignment-engine/modules/assignment/domain/aggregates/assignment"
	"github.com/iota-uz/assignment-engine/pkg/composables"
	"github.com/iota-uz/assignment-engine/pkg/configuration"
	"github.com/iota-uz/assignment-engine/pkg/eventbus"
)

// HealthStatus classifies how much of an assignment's SLA budget is spent.
type HealthStatus string

const (
	HealthOnTrack  HealthStatus = "on_track"
	HealthAtRisk   HealthStatus = "at_risk"
	HealthBreached HealthStatus = "breached"
)

// SLAService owns deadline policy: budgets per priority and per stage, the
// at-risk classification, and the periodic sweep that marks and escalates
// overdue assignments.
type SLAService struct {
	repo       assignment.Repository
	escalation *EscalationService
	publisher  eventbus.EventBus
	opts       configuration.SLAOptions
	logger     *logrus.Logger
}

func NewSLAService(
	repo assignment.Repository,
	escalation *EscalationService,
	publisher eventbus.EventBus,
	opts configuration.SLAOptions,
	logger *logrus.Logger,
) *SLAService {
	return &SLAService{
		repo:       repo,
		escalation: escalation,
		publisher:  publisher,
		opts:       opts,
		logger:     logger,
	}
}

// DeadlineFor computes the overall SLA deadline for a priority.
func (s *SLAService) DeadlineFor(priority assignment.Priority, from time.Time) time.Time {
	switch priority {
	case assignment.PriorityUrgent:
		return from.Add(s.opts.UrgentBudget)
	case assignment.PriorityHigh:
		return from.Add(s.opts.HighBudget)
	case assignment.PriorityLow:
		return from.Add(s.opts.LowBudget)
	default:
		return from.Add(s.opts.NormalBudget)
	}
}

// StageDeadlineFor computes the stage-level deadline; terminal stages have
// none.
func (s *SLAService) StageDeadlineFor(stage assignment.Stage, from time.Time) *time.Time {
	var budget time.Duration
	switch stage {
	case assignment.StageTodo:
		budget = s.opts.TodoStageBudget
	case assignment.StageInProgress:
		budget = s.opts.InProgressStageBudget
	case assignment.StageReview:
		budget = s.opts.ReviewStageBudget
	default:
		return nil
	}
	deadline := from.Add(budget)
	return &deadline
}

// PercentElapsed reports the consumed fraction of the budget in [0, +inf).
func (s *SLAService) PercentElapsed(a assignment.Assignment, now time.Time) float64 {
	total := a.SLADeadline().Sub(a.AssignedAt())
	if total <= 0 {
		return 1
	}
	elapsed := now.Sub(a.AssignedAt())
	if elapsed < 0 {
		return 0
	}
	return float64(elapsed) / float64(total)
}

// TimeRemaining is negative once the deadline has passed.
func (s *SLAService) TimeRemaining(a assignment.Assignment, now time.Time) time.Duration {
	return a.SLADeadline().Sub(now)
}

// Classify maps budget consumption to a health status. Terminal assignments
// are always on track.
func (s *SLAService) Classify(a assignment.Assignment, now time.Time) HealthStatus {
	if a.Status().Terminal() {
		return HealthOnTrack
	}
	elapsed := s.PercentElapsed(a, now)
	switch {
	case elapsed >= 1:
		return HealthBreached
	case elapsed >= s.opts.AtRiskFraction:
		return HealthAtRisk
	default:
		return HealthOnTrack
	}
}

// Sweep walks active assignments once: first crossing of the at-risk fraction
// records a warning, a passed deadline triggers an automatic escalation. It
// returns how many assignments were warned and escalated.
func (s *SLAService) Sweep(ctx context.Context, now time.Time) (warned, escalated int, err error) {
	err = composables.InTx(ctx, func(txCtx context.Context) error {
		active, err := s.repo.ListActive(txCtx)
		if err != nil {
			return err
		}

		for _, a := range active {
			health := s.Classify(a, now)

			if health == HealthBreached && a.EscalatedAt() == nil {
				slaBreachesTotal.Inc()
				if err := s.escalation.escalateAutomatic(txCtx, a, now); err != nil {
					s.logger.WithError(err).WithField("assignment_id", a.ID()).
						Warn("sweep: automatic escalation failed")
					continue
				}
				escalated++
				continue
			}

			if health == HealthAtRisk && a.WarningSentAt() == nil {
				updated, err := s.repo.UpdateVersioned(txCtx, a.Warned(now), a.Version())
				if err != nil {
					// A concurrent writer moved the aggregate; the next sweep
					// will see the fresh row.
					s.logger.WithError(err).WithField("assignment_id", a.ID()).
						Debug("sweep: warning marker skipped")
					continue
				}
				warned++
				s.publisher.Publish(assignment.WarningEvent{Assignment: updated, Timestamp: now})
			}
		}
		return nil
	})
	return warned, escalated, err
}

// Run sweeps on the configured interval until the context is cancelled.
func (s *SLAService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			warned, escalated, err := s.Sweep(ctx, time.Now())
			if err != nil {
				s.logger.WithError(err).Error("SLA sweep failed")
				continue
			}
			if warned > 0 || escalated > 0 {
				s.logger.WithFields(logrus.Fields{
					"warned":    warned,
					"escalated": escalated,
				}).Info("SLA sweep completed")
			}
		}
	}
}
