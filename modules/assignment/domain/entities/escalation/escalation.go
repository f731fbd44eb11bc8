package escalation

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("escalation not found")

type Status string

const (
	StatusPending      Status = "pending"
	StatusAcknowledged Status = "acknowledged"
	StatusResolved     Status = "resolved"
)

// Record is a single raised escalation and its lifecycle. A record starts
// pending, the recipient acknowledges it, and either side closes it with a
// resolution note.
type Record struct {
	ID             uuid.UUID
	AssignmentID   uuid.UUID
	RaisedBy       uuid.UUID
	RecipientID    uuid.UUID
	Reason         string
	Automatic      bool
	Status         Status
	AcknowledgedBy *uuid.UUID
	AcknowledgedAt *time.Time
	ResolvedBy     *uuid.UUID
	ResolvedAt     *time.Time
	ResolutionNote string
	CreatedAt      time.Time
}

// Acknowledged returns a copy moved to the acknowledged state.
func (r Record) Acknowledged(by uuid.UUID, at time.Time) Record {
	r.Status = StatusAcknowledged
	r.AcknowledgedBy = &by
	r.AcknowledgedAt = &at
	return r
}

// Resolved returns a copy moved to the resolved state.
func (r Record) Resolved(by uuid.UUID, note string, at time.Time) Record {
	r.Status = StatusResolved
	r.ResolvedBy = &by
	r.ResolvedAt = &at
	r.ResolutionNote = note
	return r
}

// AcknowledgedEvent fires after a recipient acknowledges an escalation.
type AcknowledgedEvent struct {
	Record    Record
	Timestamp time.Time
}

// ResolvedEvent fires after an escalation is closed.
type ResolvedEvent struct {
	Record    Record
	Timestamp time.Time
}

type Repository interface {
	Insert(ctx context.Context, r Record) (Record, error)
	GetByID(ctx context.Context, id uuid.UUID) (Record, error)
	// ListByAssignment returns records newest first.
	ListByAssignment(ctx context.Context, assignmentID uuid.UUID) ([]Record, error)
	Update(ctx context.Context, r Record) error
}
