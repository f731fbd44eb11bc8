package assignment

import (
	"time"

	"github.com/google/uuid"
)

// CreatedEvent fires after a work item is admitted and an assignment row
// committed.
type CreatedEvent struct {
	Assignment Assignment
	Timestamp  time.Time
}

// StageMovedEvent fires after a workflow stage transition commits.
type StageMovedEvent struct {
	Assignment Assignment
	From       Stage
	To         Stage
	MovedBy    uuid.UUID
	Timestamp  time.Time
}

// EscalatedEvent fires after an escalation record is written.
type EscalatedEvent struct {
	Assignment  Assignment
	RecipientID uuid.UUID
	Reason      string
	Automatic   bool
	Timestamp   time.Time
}

// CompletedEvent fires when an assignment reaches a terminal stage and the
// assignee's capacity slot is released.
type CompletedEvent struct {
	Assignment Assignment
	Timestamp  time.Time
}

// WarningEvent fires once per assignment when the SLA sweeper first observes
// it past the at-risk fraction of its budget.
type WarningEvent struct {
	Assignment Assignment
	Timestamp  time.Time
}
