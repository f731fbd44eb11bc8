package services

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/assignment-engine/modules/assignment/domain/aggregates/assignment"
	"github.com/iota-uz/assignment-engine/modules/assignment/domain/entities/escalation"
	"github.com/iota-uz/assignment-engine/modules/assignment/domain/entities/orgunit"
	"github.com/iota-uz/assignment-engine/modules/assignment/domain/entities/staff"
	"github.com/iota-uz/assignment-engine/pkg/composables"
	"github.com/iota-uz/assignment-engine/pkg/configuration"
	"github.com/iota-uz/assignment-engine/pkg/eventbus"
	"github.com/iota-uz/assignment-engine/pkg/ratelimit"
)

// EscalationService raises assignments to a supervisor up the org chain. A
// per-assignment cooldown window keeps repeated escalations from spamming
// recipients; the database guard is authoritative, the limiter is a cheap
// front door.
type EscalationService struct {
	repo        assignment.Repository
	escalations escalation.Repository
	directory   staff.Directory
	units       orgunit.Repository
	limiter     *ratelimit.FixedWindow
	publisher   eventbus.EventBus
	opts        configuration.EscalationOptions
	logger      *logrus.Logger
}

func NewEscalationService(
	repo assignment.Repository,
	escalations escalation.Repository,
	directory staff.Directory,
	units orgunit.Repository,
	limiter *ratelimit.FixedWindow,
	publisher eventbus.EventBus,
	opts configuration.EscalationOptions,
	logger *logrus.Logger,
) *EscalationService {
	return &EscalationService{
		repo:        repo,
		escalations: escalations,
		directory:   directory,
		units:       units,
		limiter:     limiter,
		publisher:   publisher,
		opts:        opts,
		logger:      logger,
	}
}

// Escalate raises the assignment on behalf of the actor. The version must
// match the one the caller last read.
func (s *EscalationService) Escalate(ctx context.Context, id uuid.UUID, reason string, version int64) (assignment.Assignment, error) {
	actor, err := composables.UseActor(ctx)
	if err != nil {
		return assignment.Assignment{}, err
	}

	result, err := s.limiter.Peek(ctx, "escalation:"+id.String())
	if err == nil && !result.Allowed {
		return assignment.Assignment{}, rateLimitError(result.RetryAfter)
	}

	var updated assignment.Assignment
	err = composables.InTx(ctx, func(txCtx context.Context) error {
		a, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			if errors.Is(err, assignment.ErrNotFound) {
				return notFoundError("assignment not found", err)
			}
			return err
		}

		allowed, err := canAccess(txCtx, s.repo, s.directory, a, actor)
		if err != nil {
			return err
		}
		if !allowed {
			return forbiddenError("you have no access to this assignment")
		}
		if a.Status().Terminal() {
			return conflictError("assignment is already closed", nil)
		}

		updated, err = s.escalate(txCtx, a, actor.ID, reason, false, version, time.Now())
		return err
	})
	if err != nil {
		return assignment.Assignment{}, err
	}
	return updated, nil
}

// escalateAutomatic is invoked by the SLA sweep for breached assignments.
// The assigner is recorded as the acting party.
func (s *EscalationService) escalateAutomatic(ctx context.Context, a assignment.Assignment, now time.Time) error {
	_, err := s.escalate(ctx, a, a.AssignedBy(), "SLA deadline breached", true, a.Version(), now)
	if err != nil {
		// Cooldown or an already attached supervisor during a sweep is not an
		// error; another path raised it.
		var serr *ServiceError
		if errors.As(err, &serr) && (serr.Code == "ASSIGNMENT_RATE_LIMITED" || serr.Code == "ASSIGNMENT_ALREADY_ESCALATED") {
			return nil
		}
	}
	return err
}

func (s *EscalationService) escalate(ctx context.Context, a assignment.Assignment, actorID uuid.UUID, reason string, automatic bool, version int64, now time.Time) (assignment.Assignment, error) {
	recipientID, ok, err := s.units.SupervisorOf(ctx, a.UnitID(), a.AssigneeID())
	if err != nil {
		return assignment.Assignment{}, err
	}
	if !ok {
		return assignment.Assignment{}, noEscalationPathError()
	}

	// The recipient stays attached as an observer after the first raise; a
	// repeat escalation to the same supervisor is a no-op worth rejecting.
	attached, err := s.repo.IsObserver(ctx, a.ID(), recipientID)
	if err != nil {
		return assignment.Assignment{}, err
	}
	if attached {
		return assignment.Assignment{}, alreadyEscalatedError()
	}

	inserted, err := s.repo.AppendEscalatedEvent(ctx, assignment.TimelineEvent{
		AssignmentID: a.ID(),
		Kind:         "escalated",
		ActorID:      actorID,
		RecipientID:  &recipientID,
		Note:         reason,
	}, s.opts.CooldownWindow)
	if err != nil {
		return assignment.Assignment{}, err
	}
	if !inserted {
		last, err := s.repo.LastEscalatedAt(ctx, a.ID())
		if err != nil {
			return assignment.Assignment{}, err
		}
		retryAfter := s.opts.CooldownWindow
		if last != nil {
			retryAfter = last.Add(s.opts.CooldownWindow).Sub(now)
		}
		return assignment.Assignment{}, rateLimitError(retryAfter)
	}

	// Consume the limiter window so the fast path rejects before touching
	// the database next time.
	if _, err := s.limiter.Allow(ctx, "escalation:"+a.ID().String()); err != nil {
		s.logger.WithError(err).Debug("escalation limiter unavailable")
	}

	updated, err := s.repo.UpdateVersioned(ctx, a.Escalated(recipientID, now), version)
	if err != nil {
		if errors.Is(err, assignment.ErrStaleVersion) {
			return assignment.Assignment{}, conflictError("assignment was modified concurrently", err)
		}
		return assignment.Assignment{}, err
	}

	if _, err := s.repo.AddObserver(ctx, assignment.Observer{
		AssignmentID: a.ID(),
		UserID:       recipientID,
		AddedBy:      actorID,
	}); err != nil {
		return assignment.Assignment{}, err
	}

	if _, err := s.escalations.Insert(ctx, escalation.Record{
		AssignmentID: a.ID(),
		RaisedBy:     actorID,
		RecipientID:  recipientID,
		Reason:       reason,
		Automatic:    automatic,
		Status:       escalation.StatusPending,
	}); err != nil {
		return assignment.Assignment{}, err
	}

	escalationsTotal.WithLabelValues(strconv.FormatBool(automatic)).Inc()
	s.publisher.Publish(assignment.EscalatedEvent{
		Assignment:  updated,
		RecipientID: recipientID,
		Reason:      reason,
		Automatic:   automatic,
		Timestamp:   now,
	})
	return updated, nil
}

// ListEscalations returns the escalation records for an assignment, newest
// first, for anyone who can read the assignment.
func (s *EscalationService) ListEscalations(ctx context.Context, assignmentID uuid.UUID) ([]escalation.Record, error) {
	actor, err := composables.UseActor(ctx)
	if err != nil {
		return nil, err
	}

	return composables.InTxResult(ctx, func(txCtx context.Context) ([]escalation.Record, error) {
		a, err := s.repo.GetByID(txCtx, assignmentID)
		if err != nil {
			if errors.Is(err, assignment.ErrNotFound) {
				return nil, notFoundError("assignment not found", err)
			}
			return nil, err
		}
		allowed, err := canAccess(txCtx, s.repo, s.directory, a, actor)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, forbiddenError("you have no access to this assignment")
		}
		return s.escalations.ListByAssignment(txCtx, assignmentID)
	})
}

// Acknowledge moves a pending escalation to acknowledged. Only the recipient
// or an admin may acknowledge.
func (s *EscalationService) Acknowledge(ctx context.Context, id uuid.UUID) (escalation.Record, error) {
	actor, err := composables.UseActor(ctx)
	if err != nil {
		return escalation.Record{}, err
	}

	return composables.InTxResult(ctx, func(txCtx context.Context) (escalation.Record, error) {
		rec, err := s.escalations.GetByID(txCtx, id)
		if err != nil {
			if errors.Is(err, escalation.ErrNotFound) {
				return escalation.Record{}, notFoundError("escalation not found", err)
			}
			return escalation.Record{}, err
		}
		if actor.Role != RoleAdmin && actor.ID != rec.RecipientID {
			return escalation.Record{}, forbiddenError("only the escalation recipient may acknowledge it")
		}
		switch rec.Status {
		case escalation.StatusResolved:
			return escalation.Record{}, conflictError("escalation is already resolved", nil)
		case escalation.StatusAcknowledged:
			return escalation.Record{}, conflictError("escalation is already acknowledged", nil)
		}

		now := time.Now()
		rec = rec.Acknowledged(actor.ID, now)
		if err := s.escalations.Update(txCtx, rec); err != nil {
			return escalation.Record{}, err
		}
		if err := s.repo.AppendEvent(txCtx, assignment.TimelineEvent{
			AssignmentID: rec.AssignmentID,
			Kind:         "escalation_acknowledged",
			ActorID:      actor.ID,
		}); err != nil {
			return escalation.Record{}, err
		}

		s.publisher.Publish(escalation.AcknowledgedEvent{Record: rec, Timestamp: now})
		return rec, nil
	})
}

// Resolve closes an escalation with a note. The recipient, the original
// raiser or an admin may resolve; a pending record may be resolved directly.
func (s *EscalationService) Resolve(ctx context.Context, id uuid.UUID, note string) (escalation.Record, error) {
	actor, err := composables.UseActor(ctx)
	if err != nil {
		return escalation.Record{}, err
	}

	return composables.InTxResult(ctx, func(txCtx context.Context) (escalation.Record, error) {
		rec, err := s.escalations.GetByID(txCtx, id)
		if err != nil {
			if errors.Is(err, escalation.ErrNotFound) {
				return escalation.Record{}, notFoundError("escalation not found", err)
			}
			return escalation.Record{}, err
		}
		if actor.Role != RoleAdmin && actor.ID != rec.RecipientID && actor.ID != rec.RaisedBy {
			return escalation.Record{}, forbiddenError("only the recipient or the raiser may resolve an escalation")
		}
		if rec.Status == escalation.StatusResolved {
			return escalation.Record{}, conflictError("escalation is already resolved", nil)
		}

		now := time.Now()
		rec = rec.Resolved(actor.ID, note, now)
		if err := s.escalations.Update(txCtx, rec); err != nil {
			return escalation.Record{}, err
		}
		if err := s.repo.AppendEvent(txCtx, assignment.TimelineEvent{
			AssignmentID: rec.AssignmentID,
			Kind:         "escalation_resolved",
			ActorID:      actor.ID,
			Note:         note,
		}); err != nil {
			return escalation.Record{}, err
		}

		s.publisher.Publish(escalation.ResolvedEvent{Record: rec, Timestamp: now})
		return rec, nil
	})
}
