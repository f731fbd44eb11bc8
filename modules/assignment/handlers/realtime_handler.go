package handlers

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/assignment-engine/modules/assignment/domain/aggregates/assignment"
	"github.com/iota-uz/assignment-engine/modules/assignment/domain/entities/escalation"
	"github.com/iota-uz/assignment-engine/modules/assignment/domain/entities/queueentry"
	"github.com/iota-uz/assignment-engine/pkg/eventbus"
	"github.com/iota-uz/assignment-engine/pkg/realtime"
)

// RealtimeHandler translates domain events into websocket notifications on
// the assignee's personal channel and the unit's board channel.
type RealtimeHandler struct {
	notifier realtime.Notifier
	logger   *logrus.Logger
}

func RegisterRealtimeHandler(bus eventbus.EventBus, notifier realtime.Notifier, logger *logrus.Logger) *RealtimeHandler {
	h := &RealtimeHandler{notifier: notifier, logger: logger}
	bus.Subscribe(h.onCreated)
	bus.Subscribe(h.onStageMoved)
	bus.Subscribe(h.onEscalated)
	bus.Subscribe(h.onEscalationAcknowledged)
	bus.Subscribe(h.onEscalationResolved)
	bus.Subscribe(h.onQueued)
	bus.Subscribe(h.onDrained)
	bus.Subscribe(h.onWarning)
	return h
}

type assignmentPayload struct {
	AssignmentID uuid.UUID  `json:"assignment_id"`
	WorkItemID   uuid.UUID  `json:"work_item_id"`
	WorkItemType string     `json:"work_item_type"`
	AssigneeID   uuid.UUID  `json:"assignee_id"`
	UnitID       uuid.UUID  `json:"unit_id"`
	EngagementID *uuid.UUID `json:"engagement_id,omitempty"`
	Priority     string     `json:"priority"`
	Status       string     `json:"status"`
	Stage        string     `json:"stage"`
	Version      int64      `json:"version"`
}

func payloadOf(a assignment.Assignment) assignmentPayload {
	return assignmentPayload{
		AssignmentID: a.ID(),
		WorkItemID:   a.WorkItemID(),
		WorkItemType: string(a.WorkItemType()),
		AssigneeID:   a.AssigneeID(),
		UnitID:       a.UnitID(),
		EngagementID: a.EngagementID(),
		Priority:     string(a.Priority()),
		Status:       string(a.Status()),
		Stage:        string(a.Stage()),
		Version:      a.Version(),
	}
}

func (h *RealtimeHandler) send(eventType string, channel string, payload any) {
	ev, err := realtime.NewEvent(eventType, channel, payload)
	if err != nil {
		h.logger.WithError(err).Error("realtime: failed to encode event")
		return
	}
	if err := h.notifier.Publish(channel, ev); err != nil {
		h.logger.WithError(err).WithField("channel", channel).
			Warn("realtime: failed to publish event")
	}
}

func (h *RealtimeHandler) fanout(eventType string, a assignment.Assignment, payload any) {
	h.send(eventType, realtime.UserChannel(a.AssigneeID()), payload)
	h.send(eventType, realtime.UnitChannel(a.UnitID()), payload)
	if eng := a.EngagementID(); eng != nil {
		h.send(eventType, realtime.EngagementChannel(*eng), payload)
	}
}

func (h *RealtimeHandler) onCreated(ev assignment.CreatedEvent) {
	h.fanout(realtime.EventAssignmentCreated, ev.Assignment, payloadOf(ev.Assignment))
}

func (h *RealtimeHandler) onStageMoved(ev assignment.StageMovedEvent) {
	payload := struct {
		assignmentPayload
		From    string    `json:"from_stage"`
		To      string    `json:"to_stage"`
		MovedBy uuid.UUID `json:"moved_by"`
	}{payloadOf(ev.Assignment), string(ev.From), string(ev.To), ev.MovedBy}
	h.fanout(realtime.EventStageMoved, ev.Assignment, payload)
}

func (h *RealtimeHandler) onEscalated(ev assignment.EscalatedEvent) {
	payload := struct {
		assignmentPayload
		RecipientID uuid.UUID `json:"recipient_id"`
		Reason      string    `json:"reason"`
		Automatic   bool      `json:"automatic"`
	}{payloadOf(ev.Assignment), ev.RecipientID, ev.Reason, ev.Automatic}
	h.fanout(realtime.EventEscalationAdded, ev.Assignment, payload)
	// The recipient gets a personal notification too.
	h.send(realtime.EventEscalationAdded, realtime.UserChannel(ev.RecipientID), payload)
}

type escalationPayload struct {
	EscalationID uuid.UUID `json:"escalation_id"`
	AssignmentID uuid.UUID `json:"assignment_id"`
	RecipientID  uuid.UUID `json:"recipient_id"`
	RaisedBy     uuid.UUID `json:"raised_by"`
	Status       string    `json:"status"`
}

func escalationPayloadOf(rec escalation.Record) escalationPayload {
	return escalationPayload{
		EscalationID: rec.ID,
		AssignmentID: rec.AssignmentID,
		RecipientID:  rec.RecipientID,
		RaisedBy:     rec.RaisedBy,
		Status:       string(rec.Status),
	}
}

func (h *RealtimeHandler) onEscalationAcknowledged(ev escalation.AcknowledgedEvent) {
	payload := escalationPayloadOf(ev.Record)
	h.send(realtime.EventEscalationUpdated, realtime.UserChannel(ev.Record.RaisedBy), payload)
	h.send(realtime.EventEscalationUpdated, realtime.UserChannel(ev.Record.RecipientID), payload)
}

func (h *RealtimeHandler) onEscalationResolved(ev escalation.ResolvedEvent) {
	payload := escalationPayloadOf(ev.Record)
	h.send(realtime.EventEscalationUpdated, realtime.UserChannel(ev.Record.RaisedBy), payload)
	h.send(realtime.EventEscalationUpdated, realtime.UserChannel(ev.Record.RecipientID), payload)
}

func (h *RealtimeHandler) onWarning(ev assignment.WarningEvent) {
	h.fanout(realtime.EventAssignmentUpdated, ev.Assignment, payloadOf(ev.Assignment))
}

func (h *RealtimeHandler) onQueued(ev queueentry.QueuedEvent) {
	payload := struct {
		EntryID    uuid.UUID `json:"entry_id"`
		WorkItemID uuid.UUID `json:"work_item_id"`
		UnitID     uuid.UUID `json:"unit_id"`
		Priority   string    `json:"priority"`
		Position   int       `json:"position"`
	}{ev.Entry.ID, ev.Entry.WorkItemID, ev.Entry.UnitID, string(ev.Entry.Priority), ev.Position}
	h.send(realtime.EventQueueUpdated, realtime.UnitChannel(ev.Entry.UnitID), payload)
}

func (h *RealtimeHandler) onDrained(ev queueentry.DrainedEvent) {
	h.send(realtime.EventQueueUpdated, realtime.UnitChannel(ev.Entry.UnitID), struct {
		EntryID      uuid.UUID `json:"entry_id"`
		AssignmentID uuid.UUID `json:"assignment_id"`
	}{ev.Entry.ID, ev.Assignment.ID()})
	h.fanout(realtime.EventAssignmentCreated, ev.Assignment, payloadOf(ev.Assignment))
}
