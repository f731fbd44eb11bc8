package queueentry

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/iota-uz/assignment-engine/modules/assignment/domain/aggregates/assignment"
)

var ErrNotFound = errors.New("queue entry not found")

// Entry is a work item waiting for capacity. Entries drain in priority
// order, FIFO within a priority.
type Entry struct {
	ID             uuid.UUID
	WorkItemID     uuid.UUID
	WorkItemType   assignment.WorkItemType
	UnitID         uuid.UUID
	EngagementID   *uuid.UUID
	RequiredSkills []string
	Priority       assignment.Priority
	RequestedBy    uuid.UUID
	Attempts       int
	QueuedAt       time.Time
}

// QueuedEvent fires after a work item lands on the pending queue instead of
// being assigned directly.
type QueuedEvent struct {
	Entry     Entry
	Position  int
	Timestamp time.Time
}

// DrainedEvent fires after a queued work item is assigned and its entry
// removed.
type DrainedEvent struct {
	Entry      Entry
	Assignment assignment.Assignment
	Timestamp  time.Time
}

type Repository interface {
	Insert(ctx context.Context, e Entry) (Entry, error)
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (Entry, error)
	// Position is the 1-based rank of the entry in drain order.
	Position(ctx context.Context, id uuid.UUID) (int, error)
	// ListPending returns entries for the unit in drain order: priority rank
	// descending, then queued time ascending.
	ListPending(ctx context.Context, unitID uuid.UUID, limit int) ([]Entry, error)
	IncrementAttempts(ctx context.Context, id uuid.UUID) error
}
