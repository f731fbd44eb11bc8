package persistence

import (
	"github.com/iota-uz/assignment-engine/modules/assignment/domain/aggregates/assignment"
	"github.com/iota-uz/assignment-engine/modules/assignment/domain/entities/escalation"
	"github.com/iota-uz/assignment-engine/modules/assignment/domain/entities/orgunit"
	"github.com/iota-uz/assignment-engine/modules/assignment/domain/entities/queueentry"
	"github.com/iota-uz/assignment-engine/modules/assignment/domain/entities/staff"
	"github.com/iota-uz/assignment-engine/modules/assignment/infrastructure/persistence/models"
)

func toDomainAssignment(m models.Assignment) assignment.Assignment {
	return assignment.Hydrate(assignment.HydrateParams{
		ID:                    m.ID,
		WorkItemID:            m.WorkItemID,
		WorkItemType:          assignment.WorkItemType(m.WorkItemType),
		AssigneeID:            m.AssigneeID,
		AssignedBy:            m.AssignedBy,
		UnitID:                m.UnitID,
		EngagementID:          m.EngagementID,
		RequiredSkills:        m.RequiredSkills,
		Priority:              assignment.Priority(m.Priority),
		Status:                assignment.Status(m.Status),
		Stage:                 assignment.Stage(m.Stage),
		AssignedAt:            m.AssignedAt,
		SLADeadline:           m.SLADeadline,
		StageSLADeadline:      m.StageSLADeadline,
		WarningSentAt:         m.WarningSentAt,
		EscalatedAt:           m.EscalatedAt,
		EscalationRecipientID: m.EscalationRecipientID,
		CompletedAt:           m.CompletedAt,
		Version:               m.Version,
	})
}

func toDBAssignment(a assignment.Assignment) models.Assignment {
	return models.Assignment{
		ID:                    a.ID(),
		WorkItemID:            a.WorkItemID(),
		WorkItemType:          string(a.WorkItemType()),
		AssigneeID:            a.AssigneeID(),
		AssignedBy:            a.AssignedBy(),
		UnitID:                a.UnitID(),
		EngagementID:          a.EngagementID(),
		RequiredSkills:        a.RequiredSkills(),
		Priority:              string(a.Priority()),
		Status:                string(a.Status()),
		Stage:                 string(a.Stage()),
		AssignedAt:            a.AssignedAt(),
		SLADeadline:           a.SLADeadline(),
		StageSLADeadline:      a.StageSLADeadline(),
		WarningSentAt:         a.WarningSentAt(),
		EscalatedAt:           a.EscalatedAt(),
		EscalationRecipientID: a.EscalationRecipientID(),
		CompletedAt:           a.CompletedAt(),
		Version:               a.Version(),
	}
}

func toDomainTimelineEvent(m models.AssignmentEvent) assignment.TimelineEvent {
	return assignment.TimelineEvent{
		ID:           m.ID,
		AssignmentID: m.AssignmentID,
		Kind:         m.Kind,
		ActorID:      m.ActorID,
		RecipientID:  m.RecipientID,
		Note:         m.Note,
		CreatedAt:    m.CreatedAt,
	}
}

func toDomainEscalation(m models.AssignmentEscalation) escalation.Record {
	return escalation.Record{
		ID:             m.ID,
		AssignmentID:   m.AssignmentID,
		RaisedBy:       m.RaisedBy,
		RecipientID:    m.RecipientID,
		Reason:         m.Reason,
		Automatic:      m.Automatic,
		Status:         escalation.Status(m.Status),
		AcknowledgedBy: m.AcknowledgedBy,
		AcknowledgedAt: m.AcknowledgedAt,
		ResolvedBy:     m.ResolvedBy,
		ResolvedAt:     m.ResolvedAt,
		ResolutionNote: m.ResolutionNote,
		CreatedAt:      m.CreatedAt,
	}
}

func toDomainObserver(m models.AssignmentObserver) assignment.Observer {
	return assignment.Observer{
		AssignmentID: m.AssignmentID,
		UserID:       m.UserID,
		AddedBy:      m.AddedBy,
		CreatedAt:    m.CreatedAt,
	}
}

func toDomainStageTransition(m models.StageHistory) assignment.StageTransition {
	return assignment.StageTransition{
		ID:           m.ID,
		AssignmentID: m.AssignmentID,
		FromStage:    assignment.Stage(m.FromStage),
		ToStage:      assignment.Stage(m.ToStage),
		MovedBy:      m.MovedBy,
		CreatedAt:    m.CreatedAt,
	}
}

func toDomainProfile(m models.StaffProfile) staff.Profile {
	return staff.Profile{
		UserID:                 m.UserID,
		UnitID:                 m.UnitID,
		Role:                   m.Role,
		Skills:                 m.Skills,
		AssignmentLimit:        m.AssignmentLimit,
		CurrentAssignmentCount: m.CurrentAssignmentCount,
		Available:              m.Available,
		UnavailableUntil:       m.UnavailableUntil,
		UpdatedAt:              m.UpdatedAt,
	}
}

func toDomainQueueEntry(m models.QueueEntry) queueentry.Entry {
	return queueentry.Entry{
		ID:             m.ID,
		WorkItemID:     m.WorkItemID,
		WorkItemType:   assignment.WorkItemType(m.WorkItemType),
		UnitID:         m.UnitID,
		EngagementID:   m.EngagementID,
		RequiredSkills: m.RequiredSkills,
		Priority:       assignment.Priority(m.Priority),
		RequestedBy:    m.RequestedBy,
		Attempts:       m.Attempts,
		QueuedAt:       m.QueuedAt,
	}
}

func toDomainUnit(m models.OrgUnit) orgunit.Unit {
	return orgunit.Unit{
		ID:           m.ID,
		Name:         m.Name,
		ParentID:     m.ParentID,
		SupervisorID: m.SupervisorID,
	}
}
