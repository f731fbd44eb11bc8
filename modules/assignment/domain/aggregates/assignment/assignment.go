package assignment

import (
	"time"

	"github.com/google/uuid"
)

// Priority of a work item; drives queue ordering and SLA budgets.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Rank orders priorities; larger means more urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 4
	case PriorityHigh:
		return 3
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

func (p Priority) Valid() bool { return p.Rank() > 0 }

// Status is the coarse lifecycle of an assignment, distinct from the
// finer-grained workflow stage.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Stage is the workflow progression state shown on kanban boards.
type Stage string

const (
	StageTodo       Stage = "todo"
	StageInProgress Stage = "in_progress"
	StageReview     Stage = "review"
	StageDone       Stage = "done"
	StageCancelled  Stage = "cancelled"
)

func (s Stage) Terminal() bool {
	return s == StageDone || s == StageCancelled
}

func (s Stage) Valid() bool {
	switch s {
	case StageTodo, StageInProgress, StageReview, StageDone, StageCancelled:
		return true
	}
	return false
}

// Next returns the single forward step in the sequential workflow, if any.
func (s Stage) Next() (Stage, bool) {
	switch s {
	case StageTodo:
		return StageInProgress, true
	case StageInProgress:
		return StageReview, true
	case StageReview:
		return StageDone, true
	}
	return "", false
}

// WorkItemType names the kind of entity an assignment points at. Work items
// themselves live outside this engine and are referenced by id.
type WorkItemType string

const (
	WorkItemDossier  WorkItemType = "dossier"
	WorkItemTicket   WorkItemType = "ticket"
	WorkItemPosition WorkItemType = "position"
	WorkItemTask     WorkItemType = "task"
)

func (t WorkItemType) Valid() bool {
	switch t {
	case WorkItemDossier, WorkItemTicket, WorkItemPosition, WorkItemTask:
		return true
	}
	return false
}

// Assignment binds a work item to an assignee with a time budget. Every
// mutation bumps version; writers must present the version they read.
type Assignment struct {
	id                    uuid.UUID
	workItemID            uuid.UUID
	workItemType          WorkItemType
	assigneeID            uuid.UUID
	assignedBy            uuid.UUID
	unitID                uuid.UUID
	engagementID          *uuid.UUID
	requiredSkills        []string
	priority              Priority
	status                Status
	stage                 Stage
	assignedAt            time.Time
	slaDeadline           time.Time
	stageSLADeadline      *time.Time
	warningSentAt         *time.Time
	escalatedAt           *time.Time
	escalationRecipientID *uuid.UUID
	completedAt           *time.Time
	version               int64
}

type NewParams struct {
	WorkItemID       uuid.UUID
	WorkItemType     WorkItemType
	AssigneeID       uuid.UUID
	AssignedBy       uuid.UUID
	UnitID           uuid.UUID
	EngagementID     *uuid.UUID
	RequiredSkills   []string
	Priority         Priority
	AssignedAt       time.Time
	SLADeadline      time.Time
	StageSLADeadline *time.Time
}

func New(p NewParams) Assignment {
	return Assignment{
		workItemID:       p.WorkItemID,
		workItemType:     p.WorkItemType,
		assigneeID:       p.AssigneeID,
		assignedBy:       p.AssignedBy,
		unitID:           p.UnitID,
		engagementID:     p.EngagementID,
		requiredSkills:   p.RequiredSkills,
		priority:         p.Priority,
		status:           StatusPending,
		stage:            StageTodo,
		assignedAt:       p.AssignedAt,
		slaDeadline:      p.SLADeadline,
		stageSLADeadline: p.StageSLADeadline,
		version:          1,
	}
}

type HydrateParams struct {
	ID                    uuid.UUID
	WorkItemID            uuid.UUID
	WorkItemType          WorkItemType
	AssigneeID            uuid.UUID
	AssignedBy            uuid.UUID
	UnitID                uuid.UUID
	EngagementID          *uuid.UUID
	RequiredSkills        []string
	Priority              Priority
	Status                Status
	Stage                 Stage
	AssignedAt            time.Time
	SLADeadline           time.Time
	StageSLADeadline      *time.Time
	WarningSentAt         *time.Time
	EscalatedAt           *time.Time
	EscalationRecipientID *uuid.UUID
	CompletedAt           *time.Time
	Version               int64
}

func Hydrate(p HydrateParams) Assignment {
	return Assignment{
		id:                    p.ID,
		workItemID:            p.WorkItemID,
		workItemType:          p.WorkItemType,
		assigneeID:            p.AssigneeID,
		assignedBy:            p.AssignedBy,
		unitID:                p.UnitID,
		engagementID:          p.EngagementID,
		requiredSkills:        p.RequiredSkills,
		priority:              p.Priority,
		status:                p.Status,
		stage:                 p.Stage,
		assignedAt:            p.AssignedAt,
		slaDeadline:           p.SLADeadline,
		stageSLADeadline:      p.StageSLADeadline,
		warningSentAt:         p.WarningSentAt,
		escalatedAt:           p.EscalatedAt,
		escalationRecipientID: p.EscalationRecipientID,
		completedAt:           p.CompletedAt,
		version:               p.Version,
	}
}

func (a Assignment) ID() uuid.UUID                        { return a.id }
func (a Assignment) WorkItemID() uuid.UUID                { return a.workItemID }
func (a Assignment) WorkItemType() WorkItemType           { return a.workItemType }
func (a Assignment) AssigneeID() uuid.UUID                { return a.assigneeID }
func (a Assignment) AssignedBy() uuid.UUID                { return a.assignedBy }
func (a Assignment) UnitID() uuid.UUID                    { return a.unitID }
func (a Assignment) EngagementID() *uuid.UUID             { return a.engagementID }
func (a Assignment) RequiredSkills() []string             { return a.requiredSkills }
func (a Assignment) Priority() Priority                   { return a.priority }
func (a Assignment) Status() Status                       { return a.status }
func (a Assignment) Stage() Stage                         { return a.stage }
func (a Assignment) AssignedAt() time.Time                { return a.assignedAt }
func (a Assignment) SLADeadline() time.Time               { return a.slaDeadline }
func (a Assignment) StageSLADeadline() *time.Time         { return a.stageSLADeadline }
func (a Assignment) WarningSentAt() *time.Time            { return a.warningSentAt }
func (a Assignment) EscalatedAt() *time.Time              { return a.escalatedAt }
func (a Assignment) EscalationRecipientID() *uuid.UUID    { return a.escalationRecipientID }
func (a Assignment) CompletedAt() *time.Time              { return a.completedAt }
func (a Assignment) Version() int64                       { return a.version }

// MovedTo returns a copy in the target stage with the recomputed stage
// deadline and the status implied by the stage.
func (a Assignment) MovedTo(stage Stage, stageDeadline *time.Time, now time.Time) Assignment {
	out := a
	out.stage = stage
	out.stageSLADeadline = stageDeadline
	switch stage {
	case StageInProgress, StageReview:
		out.status = StatusInProgress
	case StageDone:
		out.status = StatusCompleted
		out.completedAt = &now
	case StageCancelled:
		out.status = StatusCancelled
	}
	return out
}

// Escalated returns a copy with the escalation marker set.
func (a Assignment) Escalated(recipientID uuid.UUID, at time.Time) Assignment {
	out := a
	out.escalatedAt = &at
	out.escalationRecipientID = &recipientID
	return out
}

// Warned returns a copy with the at-risk warning marker set.
func (a Assignment) Warned(at time.Time) Assignment {
	out := a
	out.warningSentAt = &at
	return out
}
