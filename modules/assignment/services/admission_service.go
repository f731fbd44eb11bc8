package services

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/assignment-engine/modules/assignment/domain/aggregates/assignment"
	"github.com/iota-uz/assignment-engine/modules/assignment/domain/entities/orgunit"
	"github.com/iota-uz/assignment-engine/modules/assignment/domain/entities/queueentry"
	"github.com/iota-uz/assignment-engine/modules/assignment/domain/entities/staff"
	"github.com/iota-uz/assignment-engine/pkg/composables"
	"github.com/iota-uz/assignment-engine/pkg/eventbus"
)

// SubmitParams describes a work item asking for an assignee.
type SubmitParams struct {
	WorkItemID     uuid.UUID
	WorkItemType   assignment.WorkItemType
	UnitID         uuid.UUID
	EngagementID   *uuid.UUID
	RequiredSkills []string
	Priority       assignment.Priority
}

// AdmissionResult is either an assignment or a queue placement, never both.
type AdmissionResult struct {
	Assigned *assignment.Assignment
	Queued   *queueentry.Entry
	Position int
}

// AdmissionService admits work items: it ranks eligible staff, claims a
// capacity slot for the best candidate, and falls back to the pending queue
// when every candidate is saturated.
type AdmissionService struct {
	repo      assignment.Repository
	directory staff.Directory
	units     orgunit.Repository
	queue     *QueueService
	sla       *SLAService
	publisher eventbus.EventBus
	logger    *logrus.Logger
}

func NewAdmissionService(
	repo assignment.Repository,
	directory staff.Directory,
	units orgunit.Repository,
	queue *QueueService,
	sla *SLAService,
	publisher eventbus.EventBus,
	logger *logrus.Logger,
) *AdmissionService {
	return &AdmissionService{
		repo:      repo,
		directory: directory,
		units:     units,
		queue:     queue,
		sla:       sla,
		publisher: publisher,
		logger:    logger,
	}
}

func (p SubmitParams) validate() error {
	if p.WorkItemID == uuid.Nil {
		return validationError("workItemId is required")
	}
	if !p.WorkItemType.Valid() {
		return validationError("workItemType is not recognized")
	}
	if p.UnitID == uuid.Nil {
		return validationError("unitId is required")
	}
	if !p.Priority.Valid() {
		return validationError("priority is not recognized")
	}
	return nil
}

// SubmitWorkItem runs admission for one work item. The slot claim is a
// conditional increment, so two concurrent submissions can both pick the same
// best candidate and only one will win; the loser moves to the next candidate.
func (s *AdmissionService) SubmitWorkItem(ctx context.Context, params SubmitParams) (AdmissionResult, error) {
	if err := params.validate(); err != nil {
		return AdmissionResult{}, err
	}

	actor, err := composables.UseActor(ctx)
	if err != nil {
		return AdmissionResult{}, err
	}

	return composables.InTxResult(ctx, func(txCtx context.Context) (AdmissionResult, error) {
		if _, err := s.units.GetByID(txCtx, params.UnitID); err != nil {
			if errors.Is(err, orgunit.ErrNotFound) {
				return AdmissionResult{}, notFoundError("org unit not found", err)
			}
			return AdmissionResult{}, err
		}

		now := time.Now()
		assigned, err := s.tryAssign(txCtx, params, actor, now)
		if err != nil {
			return AdmissionResult{}, err
		}
		if assigned != nil {
			return AdmissionResult{Assigned: assigned}, nil
		}

		entry, position, err := s.queue.Enqueue(txCtx, queueentry.Entry{
			WorkItemID:     params.WorkItemID,
			WorkItemType:   params.WorkItemType,
			UnitID:         params.UnitID,
			EngagementID:   params.EngagementID,
			RequiredSkills: params.RequiredSkills,
			Priority:       params.Priority,
			RequestedBy:    actor.ID,
		})
		if err != nil {
			return AdmissionResult{}, err
		}
		return AdmissionResult{Queued: &entry, Position: position}, nil
	})
}

// AssignQueued retries admission for a queued entry on behalf of its
// original requester. It returns nil when capacity is still exhausted.
func (s *AdmissionService) AssignQueued(ctx context.Context, entry queueentry.Entry) (*assignment.Assignment, error) {
	return s.tryAssign(ctx, SubmitParams{
		WorkItemID:     entry.WorkItemID,
		WorkItemType:   entry.WorkItemType,
		UnitID:         entry.UnitID,
		EngagementID:   entry.EngagementID,
		RequiredSkills: entry.RequiredSkills,
		Priority:       entry.Priority,
	}, composables.Actor{ID: entry.RequestedBy, Role: RoleStaff}, time.Now())
}

// tryAssign returns nil without error when no candidate slot could be
// claimed.
func (s *AdmissionService) tryAssign(ctx context.Context, params SubmitParams, actor composables.Actor, now time.Time) (*assignment.Assignment, error) {
	profiles, err := s.directory.ListEligible(ctx, params.UnitID, params.RequiredSkills)
	if err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, nil
	}

	subtree, err := s.units.SubtreeIDs(ctx, params.UnitID)
	if err != nil {
		return nil, err
	}

	candidates := rankCandidates(profiles, scoreInput{
		RequiredSkills: params.RequiredSkills,
		UnitID:         params.UnitID,
		SubtreeIDs:     subtree,
		Now:            now,
	})

	for _, candidate := range candidates {
		won, err := s.directory.ClaimSlot(ctx, candidate.Profile.UserID)
		if err != nil {
			return nil, err
		}
		if !won {
			continue
		}

		deadline := s.sla.DeadlineFor(params.Priority, now)
		created, err := s.repo.Create(ctx, assignment.New(assignment.NewParams{
			WorkItemID:       params.WorkItemID,
			WorkItemType:     params.WorkItemType,
			AssigneeID:       candidate.Profile.UserID,
			AssignedBy:       actor.ID,
			UnitID:           params.UnitID,
			EngagementID:     params.EngagementID,
			RequiredSkills:   params.RequiredSkills,
			Priority:         params.Priority,
			AssignedAt:       now,
			SLADeadline:      deadline,
			StageSLADeadline: s.sla.StageDeadlineFor(assignment.StageTodo, now),
		}))
		if err != nil {
			return nil, err
		}

		if err := s.repo.AppendEvent(ctx, assignment.TimelineEvent{
			AssignmentID: created.ID(),
			Kind:         "assigned",
			ActorID:      actor.ID,
			Note:         "work item assigned",
		}); err != nil {
			return nil, err
		}

		assignmentsCreatedTotal.WithLabelValues(string(params.Priority)).Inc()
		s.publisher.Publish(assignment.CreatedEvent{Assignment: created, Timestamp: now})
		return &created, nil
	}
	return nil, nil
}
