package assignment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("assignment not found")
	ErrStaleVersion = errors.New("assignment version is stale")
)

// TimelineEvent is an append-only audit record attached to an assignment.
type TimelineEvent struct {
	ID           uuid.UUID
	AssignmentID uuid.UUID
	Kind         string
	ActorID      uuid.UUID
	RecipientID  *uuid.UUID
	Note         string
	CreatedAt    time.Time
}

// Observer is a user subscribed to an assignment without being its assignee.
type Observer struct {
	AssignmentID uuid.UUID
	UserID       uuid.UUID
	AddedBy      uuid.UUID
	CreatedAt    time.Time
}

// StageTransition records one workflow stage move.
type StageTransition struct {
	ID           uuid.UUID
	AssignmentID uuid.UUID
	FromStage    Stage
	ToStage      Stage
	MovedBy      uuid.UUID
	CreatedAt    time.Time
}

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Assignment, error)
	ListByAssignee(ctx context.Context, assigneeID uuid.UUID) ([]Assignment, error)
	ListByEngagement(ctx context.Context, engagementID uuid.UUID) ([]Assignment, error)
	// ListActive returns non-terminal assignments for the SLA sweep.
	ListActive(ctx context.Context) ([]Assignment, error)
	Create(ctx context.Context, a Assignment) (Assignment, error)
	// UpdateVersioned writes the aggregate only if the stored version equals
	// expected; returns ErrStaleVersion otherwise. The stored version is
	// bumped by one on success.
	UpdateVersioned(ctx context.Context, a Assignment, expected int64) (Assignment, error)

	AppendEvent(ctx context.Context, ev TimelineEvent) error
	// AppendEscalatedEvent inserts an escalation timeline record only if the
	// assignment has no escalation newer than window; the bool reports
	// whether the insert happened.
	AppendEscalatedEvent(ctx context.Context, ev TimelineEvent, window time.Duration) (bool, error)
	LastEscalatedAt(ctx context.Context, assignmentID uuid.UUID) (*time.Time, error)
	ListTimeline(ctx context.Context, assignmentID uuid.UUID) ([]TimelineEvent, error)

	// AddObserver is idempotent; the bool reports whether the row already
	// existed.
	AddObserver(ctx context.Context, o Observer) (bool, error)
	ListObservers(ctx context.Context, assignmentID uuid.UUID) ([]Observer, error)
	IsObserver(ctx context.Context, assignmentID, userID uuid.UUID) (bool, error)

	AppendStageHistory(ctx context.Context, tr StageTransition) error
	ListStageHistory(ctx context.Context, assignmentID uuid.UUID) ([]StageTransition, error)
}
