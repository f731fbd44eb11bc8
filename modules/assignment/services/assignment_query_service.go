package services

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/iota-uz/assignment-engine/modules/assignment/domain/aggregates/assignment"
	"github.com/iota-uz/assignment-engine/modules/assignment/domain/entities/staff"
	"github.com/iota-uz/assignment-engine/pkg/composables"
)

// AssignmentView is an assignment decorated with its SLA health at read
// time.
type AssignmentView struct {
	Assignment     assignment.Assignment
	Health         HealthStatus
	TimeRemaining  time.Duration
	PercentElapsed float64
}

// WorkloadSummary aggregates the caller's assignment counts. It always
// covers the full workload, regardless of how the item list is filtered.
type WorkloadSummary struct {
	Total      int
	Active     int
	Pending    int
	InProgress int
	Completed  int
	AtRisk     int
	Overdue    int
}

// MyAssignmentsFilter narrows the item list. An empty Status means all;
// completed and cancelled work is hidden unless IncludeCompleted is set or
// Status names a terminal state explicitly.
type MyAssignmentsFilter struct {
	Status           assignment.Status
	IncludeCompleted bool
}

type MyAssignmentsResult struct {
	Items   []AssignmentView
	Summary WorkloadSummary
}

// EngagementProgress aggregates completion across an engagement's
// assignments.
type EngagementProgress struct {
	Total     int
	Completed int
	Percent   float64
}

type RelatedAssignmentsResult struct {
	Items    []AssignmentView
	Progress EngagementProgress
}

// AssignmentQueryService serves the read side: personal workloads,
// engagement rollups, timelines and stage history.
type AssignmentQueryService struct {
	repo      assignment.Repository
	directory staff.Directory
	sla       *SLAService
}

func NewAssignmentQueryService(
	repo assignment.Repository,
	directory staff.Directory,
	sla *SLAService,
) *AssignmentQueryService {
	return &AssignmentQueryService{repo: repo, directory: directory, sla: sla}
}

func (s *AssignmentQueryService) view(a assignment.Assignment, now time.Time) AssignmentView {
	return AssignmentView{
		Assignment:     a,
		Health:         s.sla.Classify(a, now),
		TimeRemaining:  s.sla.TimeRemaining(a, now),
		PercentElapsed: s.sla.PercentElapsed(a, now),
	}
}

// View decorates a single assignment with its current SLA health.
func (s *AssignmentQueryService) View(a assignment.Assignment) AssignmentView {
	return s.view(a, time.Now())
}

// MyAssignments lists the caller's assignments with a workload summary.
func (s *AssignmentQueryService) MyAssignments(ctx context.Context, filter MyAssignmentsFilter) (MyAssignmentsResult, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return MyAssignmentsResult{}, validationError("status filter is not recognized")
	}
	actor, err := composables.UseActor(ctx)
	if err != nil {
		return MyAssignmentsResult{}, err
	}

	return composables.InTxResult(ctx, func(txCtx context.Context) (MyAssignmentsResult, error) {
		all, err := s.repo.ListByAssignee(txCtx, actor.ID)
		if err != nil {
			return MyAssignmentsResult{}, err
		}

		now := time.Now()
		result := MyAssignmentsResult{Items: make([]AssignmentView, 0, len(all))}
		for _, a := range all {
			v := s.view(a, now)

			result.Summary.Total++
			switch a.Status() {
			case assignment.StatusPending:
				result.Summary.Pending++
			case assignment.StatusInProgress:
				result.Summary.InProgress++
			case assignment.StatusCompleted:
				result.Summary.Completed++
			}
			if !a.Status().Terminal() {
				result.Summary.Active++
			}
			switch v.Health {
			case HealthAtRisk:
				result.Summary.AtRisk++
			case HealthBreached:
				result.Summary.Overdue++
			}

			if filter.Status != "" {
				if a.Status() != filter.Status {
					continue
				}
			} else if !filter.IncludeCompleted && a.Status().Terminal() {
				continue
			}
			result.Items = append(result.Items, v)
		}
		return result, nil
	})
}

// RelatedAssignments lists the assignments of the engagement the given
// assignment belongs to, with its progress rollup. The caller must have
// access to the anchoring assignment.
func (s *AssignmentQueryService) RelatedAssignments(ctx context.Context, id uuid.UUID) (RelatedAssignmentsResult, error) {
	actor, err := composables.UseActor(ctx)
	if err != nil {
		return RelatedAssignmentsResult{}, err
	}

	return composables.InTxResult(ctx, func(txCtx context.Context) (RelatedAssignmentsResult, error) {
		anchor, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			if errors.Is(err, assignment.ErrNotFound) {
				return RelatedAssignmentsResult{}, notFoundError("assignment not found", err)
			}
			return RelatedAssignmentsResult{}, err
		}

		allowed, err := canAccess(txCtx, s.repo, s.directory, anchor, actor)
		if err != nil {
			return RelatedAssignmentsResult{}, err
		}
		if !allowed {
			return RelatedAssignmentsResult{}, forbiddenError("you have no access to this assignment")
		}

		now := time.Now()
		if anchor.EngagementID() == nil {
			return RelatedAssignmentsResult{
				Items:    []AssignmentView{s.view(anchor, now)},
				Progress: progressOf([]assignment.Assignment{anchor}),
			}, nil
		}

		related, err := s.repo.ListByEngagement(txCtx, *anchor.EngagementID())
		if err != nil {
			return RelatedAssignmentsResult{}, err
		}

		result := RelatedAssignmentsResult{
			Items:    make([]AssignmentView, 0, len(related)),
			Progress: progressOf(related),
		}
		for _, a := range related {
			result.Items = append(result.Items, s.view(a, now))
		}
		return result, nil
	})
}

// Timeline returns the audit trail of an assignment the caller may access.
func (s *AssignmentQueryService) Timeline(ctx context.Context, id uuid.UUID) ([]assignment.TimelineEvent, error) {
	actor, err := composables.UseActor(ctx)
	if err != nil {
		return nil, err
	}

	return composables.InTxResult(ctx, func(txCtx context.Context) ([]assignment.TimelineEvent, error) {
		a, err := s.repo.GetByID(txCtx, id)
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
		return s.repo.ListTimeline(txCtx, id)
	})
}

// AddObserver subscribes a user to an assignment the caller may access.
func (s *AssignmentQueryService) AddObserver(ctx context.Context, id, userID uuid.UUID) error {
	actor, err := composables.UseActor(ctx)
	if err != nil {
		return err
	}

	return composables.InTx(ctx, func(txCtx context.Context) error {
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
		_, err = s.repo.AddObserver(txCtx, assignment.Observer{
			AssignmentID: id,
			UserID:       userID,
			AddedBy:      actor.ID,
		})
		return err
	})
}

func progressOf(all []assignment.Assignment) EngagementProgress {
	p := EngagementProgress{Total: len(all)}
	for _, a := range all {
		if a.Status() == assignment.StatusCompleted {
			p.Completed++
		}
	}
	if p.Total > 0 {
		p.Percent = float64(p.Completed) / float64(p.Total) * 100
	}
	return p
}
