package services

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/assignment-engine/modules/assignment/domain/aggregates/assignment"
	"github.com/iota-uz/assignment-engine/modules/assignment/domain/entities/staff"
	"github.com/iota-uz/assignment-engine/pkg/composables"
	"github.com/iota-uz/assignment-engine/pkg/eventbus"
)

// WorkflowService moves assignments through the stage machine. Staff may
// advance their own assignment one step forward or cancel it; managers and
// admins may jump stages, but nobody reopens a terminal assignment.
type WorkflowService struct {
	repo      assignment.Repository
	directory staff.Directory
	publisher eventbus.EventBus
	sla       *SLAService
	logger    *logrus.Logger
}

func NewWorkflowService(
	repo assignment.Repository,
	directory staff.Directory,
	publisher eventbus.EventBus,
	sla *SLAService,
	logger *logrus.Logger,
) *WorkflowService {
	return &WorkflowService{
		repo:      repo,
		directory: directory,
		publisher: publisher,
		sla:       sla,
		logger:    logger,
	}
}

func transitionAllowed(actor composables.Actor, a assignment.Assignment, to assignment.Stage) error {
	from := a.Stage()
	if from.Terminal() {
		return conflictError("assignment is already closed", nil)
	}
	if to == from {
		return validationError("assignment is already in that stage")
	}

	switch actor.Role {
	case RoleAdmin, RoleManager:
		return nil
	case RoleStaff:
		if a.AssigneeID() != actor.ID {
			return forbiddenError("only the assignee may move this assignment")
		}
		// assignees may always abandon their own work
		if to == assignment.StageCancelled {
			return nil
		}
		next, ok := from.Next()
		if !ok || next != to {
			return forbiddenError("staff may only advance one stage forward")
		}
		return nil
	default:
		return forbiddenError("role may not move assignments")
	}
}

// MoveStage transitions the assignment and records the move. The version
// must match the one the caller last read.
func (s *WorkflowService) MoveStage(ctx context.Context, id uuid.UUID, to assignment.Stage, version int64) (assignment.Assignment, error) {
	if !to.Valid() {
		return assignment.Assignment{}, validationError("stage is not recognized")
	}

	actor, err := composables.UseActor(ctx)
	if err != nil {
		return assignment.Assignment{}, err
	}

	return composables.InTxResult(ctx, func(txCtx context.Context) (assignment.Assignment, error) {
		a, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			if errors.Is(err, assignment.ErrNotFound) {
				return assignment.Assignment{}, notFoundError("assignment not found", err)
			}
			return assignment.Assignment{}, err
		}

		if actor.Role == RoleManager {
			allowed, err := canAccess(txCtx, s.repo, s.directory, a, actor)
			if err != nil {
				return assignment.Assignment{}, err
			}
			if !allowed {
				return assignment.Assignment{}, forbiddenError("you have no access to this assignment")
			}
		}
		if err := transitionAllowed(actor, a, to); err != nil {
			return assignment.Assignment{}, err
		}

		now := time.Now()
		from := a.Stage()
		moved := a.MovedTo(to, s.sla.StageDeadlineFor(to, now), now)

		updated, err := s.repo.UpdateVersioned(txCtx, moved, version)
		if err != nil {
			if errors.Is(err, assignment.ErrStaleVersion) {
				return assignment.Assignment{}, conflictError("assignment was modified concurrently", err)
			}
			return assignment.Assignment{}, err
		}

		if err := s.repo.AppendStageHistory(txCtx, assignment.StageTransition{
			AssignmentID: updated.ID(),
			FromStage:    from,
			ToStage:      to,
			MovedBy:      actor.ID,
		}); err != nil {
			return assignment.Assignment{}, err
		}
		if err := s.repo.AppendEvent(txCtx, assignment.TimelineEvent{
			AssignmentID: updated.ID(),
			Kind:         "stage_moved",
			ActorID:      actor.ID,
			Note:         string(from) + " -> " + string(to),
		}); err != nil {
			return assignment.Assignment{}, err
		}

		if to.Terminal() {
			if err := s.directory.ReleaseSlot(txCtx, updated.AssigneeID()); err != nil {
				return assignment.Assignment{}, err
			}
		}

		stageMovesTotal.WithLabelValues(string(to)).Inc()
		s.publisher.Publish(assignment.StageMovedEvent{
			Assignment: updated,
			From:       from,
			To:         to,
			MovedBy:    actor.ID,
			Timestamp:  now,
		})
		if to.Terminal() {
			s.publisher.Publish(assignment.CompletedEvent{Assignment: updated, Timestamp: now})
		}
		return updated, nil
	})
}
