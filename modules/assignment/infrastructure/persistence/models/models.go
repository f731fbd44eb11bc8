package models

import (
	"time"

	"github.com/google/uuid"
)

type Assignment struct {
	ID                    uuid.UUID
	WorkItemID            uuid.UUID
	WorkItemType          string
	AssigneeID            uuid.UUID
	AssignedBy            uuid.UUID
	UnitID                uuid.UUID
	EngagementID          *uuid.UUID
	RequiredSkills        []string
	Priority              string
	Status                string
	Stage                 string
	AssignedAt            time.Time
	SLADeadline           time.Time
	StageSLADeadline      *time.Time
	WarningSentAt         *time.Time
	EscalatedAt           *time.Time
	EscalationRecipientID *uuid.UUID
	CompletedAt           *time.Time
	Version               int64
}

type AssignmentEvent struct {
	ID           uuid.UUID
	AssignmentID uuid.UUID
	Kind         string
	ActorID      uuid.UUID
	RecipientID  *uuid.UUID
	Note         string
	CreatedAt    time.Time
}

type AssignmentEscalation struct {
	ID             uuid.UUID
	AssignmentID   uuid.UUID
	RaisedBy       uuid.UUID
	RecipientID    uuid.UUID
	Reason         string
	Automatic      bool
	Status         string
	AcknowledgedBy *uuid.UUID
	AcknowledgedAt *time.Time
	ResolvedBy     *uuid.UUID
	ResolvedAt     *time.Time
	ResolutionNote string
	CreatedAt      time.Time
}

type AssignmentObserver struct {
	AssignmentID uuid.UUID
	UserID       uuid.UUID
	AddedBy      uuid.UUID
	CreatedAt    time.Time
}

type StageHistory struct {
	ID           uuid.UUID
	AssignmentID uuid.UUID
	FromStage    string
	ToStage      string
	MovedBy      uuid.UUID
	CreatedAt    time.Time
}

type StaffProfile struct {
	UserID                 uuid.UUID
	UnitID                 uuid.UUID
	Role                   string
	Skills                 []string
	AssignmentLimit        int
	CurrentAssignmentCount int
	Available              bool
	UnavailableUntil       *time.Time
	UpdatedAt              time.Time
}

type QueueEntry struct {
	ID             uuid.UUID
	WorkItemID     uuid.UUID
	WorkItemType   string
	UnitID         uuid.UUID
	EngagementID   *uuid.UUID
	RequiredSkills []string
	Priority       string
	RequestedBy    uuid.UUID
	Attempts       int
	QueuedAt       time.Time
}

type OrgUnit struct {
	ID           uuid.UUID
	Name         string
	ParentID     *uuid.UUID
	SupervisorID *uuid.UUID
}
