package dtos

import (
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/assignment-engine/modules/assignment/domain/aggregates/assignment"
	"github.com/iota-uz/assignment-engine/modules/assignment/domain/entities/escalation"
	"github.com/iota-uz/assignment-engine/modules/assignment/domain/entities/queueentry"
	"github.com/iota-uz/assignment-engine/modules/assignment/services"
)

type SubmitWorkItemRequest struct {
	WorkItemID     uuid.UUID  `json:"work_item_id"`
	WorkItemType   string     `json:"work_item_type"`
	UnitID         uuid.UUID  `json:"unit_id"`
	EngagementID   *uuid.UUID `json:"engagement_id,omitempty"`
	RequiredSkills []string   `json:"required_skills,omitempty"`
	Priority       string     `json:"priority"`
}

type EscalateRequest struct {
	Reason  string `json:"reason"`
	Version int64  `json:"version"`
}

type MoveStageRequest struct {
	Stage   string `json:"stage"`
	Version int64  `json:"version"`
}

type AddObserverRequest struct {
	UserID uuid.UUID `json:"user_id"`
}

type ResolveEscalationRequest struct {
	Note string `json:"note"`
}

type AssignmentResponse struct {
	ID                    uuid.UUID  `json:"id"`
	WorkItemID            uuid.UUID  `json:"work_item_id"`
	WorkItemType          string     `json:"work_item_type"`
	AssigneeID            uuid.UUID  `json:"assignee_id"`
	AssignedBy            uuid.UUID  `json:"assigned_by"`
	UnitID                uuid.UUID  `json:"unit_id"`
	EngagementID          *uuid.UUID `json:"engagement_id,omitempty"`
	RequiredSkills        []string   `json:"required_skills"`
	Priority              string     `json:"priority"`
	Status                string     `json:"status"`
	Stage                 string     `json:"stage"`
	AssignedAt            time.Time  `json:"assigned_at"`
	SLADeadline           time.Time  `json:"sla_deadline"`
	StageSLADeadline      *time.Time `json:"stage_sla_deadline,omitempty"`
	EscalatedAt           *time.Time `json:"escalated_at,omitempty"`
	EscalationRecipientID *uuid.UUID `json:"escalation_recipient_id,omitempty"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
	Version               int64      `json:"version"`
}

type AssignmentViewResponse struct {
	AssignmentResponse
	Health           string  `json:"health"`
	RemainingSeconds int64   `json:"remaining_seconds"`
	PercentElapsed   float64 `json:"percent_elapsed"`
}

type QueuedResponse struct {
	EntryID  uuid.UUID `json:"entry_id"`
	Position int       `json:"position"`
	QueuedAt time.Time `json:"queued_at"`
}

type SubmitWorkItemResponse struct {
	Outcome    string                  `json:"outcome"` // assigned or queued
	Assignment *AssignmentViewResponse `json:"assignment,omitempty"`
	Queue      *QueuedResponse         `json:"queue,omitempty"`
}

type WorkloadSummaryResponse struct {
	Total      int `json:"total"`
	Active     int `json:"active"`
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	AtRisk     int `json:"at_risk"`
	Overdue    int `json:"overdue"`
}

type MyAssignmentsResponse struct {
	Items   []AssignmentViewResponse `json:"items"`
	Summary WorkloadSummaryResponse  `json:"summary"`
}

type EngagementProgressResponse struct {
	Total     int     `json:"total"`
	Completed int     `json:"completed"`
	Percent   float64 `json:"percent"`
}

type RelatedAssignmentsResponse struct {
	Items    []AssignmentViewResponse   `json:"items"`
	Progress EngagementProgressResponse `json:"progress"`
}

type EscalationResponse struct {
	ID             uuid.UUID  `json:"id"`
	AssignmentID   uuid.UUID  `json:"assignment_id"`
	RaisedBy       uuid.UUID  `json:"raised_by"`
	RecipientID    uuid.UUID  `json:"recipient_id"`
	Reason         string     `json:"reason"`
	Automatic      bool       `json:"automatic"`
	Status         string     `json:"status"`
	AcknowledgedBy *uuid.UUID `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	ResolvedBy     *uuid.UUID `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	ResolutionNote string     `json:"resolution_note,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

type TimelineEventResponse struct {
	ID          uuid.UUID  `json:"id"`
	Kind        string     `json:"kind"`
	ActorID     uuid.UUID  `json:"actor_id"`
	RecipientID *uuid.UUID `json:"recipient_id,omitempty"`
	Note        string     `json:"note"`
	CreatedAt   time.Time  `json:"created_at"`
}

func ToAssignmentResponse(a assignment.Assignment) AssignmentResponse {
	skills := a.RequiredSkills()
	if skills == nil {
		skills = []string{}
	}
	return AssignmentResponse{
		ID:                    a.ID(),
		WorkItemID:            a.WorkItemID(),
		WorkItemType:          string(a.WorkItemType()),
		AssigneeID:            a.AssigneeID(),
		AssignedBy:            a.AssignedBy(),
		UnitID:                a.UnitID(),
		EngagementID:          a.EngagementID(),
		RequiredSkills:        skills,
		Priority:              string(a.Priority()),
		Status:                string(a.Status()),
		Stage:                 string(a.Stage()),
		AssignedAt:            a.AssignedAt(),
		SLADeadline:           a.SLADeadline(),
		StageSLADeadline:      a.StageSLADeadline(),
		EscalatedAt:           a.EscalatedAt(),
		EscalationRecipientID: a.EscalationRecipientID(),
		CompletedAt:           a.CompletedAt(),
		Version:               a.Version(),
	}
}

func ToAssignmentViewResponse(v services.AssignmentView) AssignmentViewResponse {
	return AssignmentViewResponse{
		AssignmentResponse: ToAssignmentResponse(v.Assignment),
		Health:             string(v.Health),
		RemainingSeconds:   int64(v.TimeRemaining.Seconds()),
		PercentElapsed:     v.PercentElapsed,
	}
}

func ToQueuedResponse(e queueentry.Entry, position int) QueuedResponse {
	return QueuedResponse{EntryID: e.ID, Position: position, QueuedAt: e.QueuedAt}
}

func ToEscalationResponse(r escalation.Record) EscalationResponse {
	return EscalationResponse{
		ID:             r.ID,
		AssignmentID:   r.AssignmentID,
		RaisedBy:       r.RaisedBy,
		RecipientID:    r.RecipientID,
		Reason:         r.Reason,
		Automatic:      r.Automatic,
		Status:         string(r.Status),
		AcknowledgedBy: r.AcknowledgedBy,
		AcknowledgedAt: r.AcknowledgedAt,
		ResolvedBy:     r.ResolvedBy,
		ResolvedAt:     r.ResolvedAt,
		ResolutionNote: r.ResolutionNote,
		CreatedAt:      r.CreatedAt,
	}
}

func ToTimelineEventResponse(ev assignment.TimelineEvent) TimelineEventResponse {
	return TimelineEventResponse{
		ID:          ev.ID,
		Kind:        ev.Kind,
		ActorID:     ev.ActorID,
		RecipientID: ev.RecipientID,
		Note:        ev.Note,
		CreatedAt:   ev.CreatedAt,
	}
}
