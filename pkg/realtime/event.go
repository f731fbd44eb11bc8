package realtime

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types fanned out to subscribed observers.
const (
	EventAssignmentCreated = "assignment:created"
	EventAssignmentUpdated = "assignment:updated"
	EventQueueUpdated      = "queue:updated"
	EventStageMoved        = "stage:moved"
	EventEscalationAdded   = "escalation:added"
	EventEscalationUpdated = "escalation:updated"

	// EventStale tells clients the relay gave up reconnecting and their view
	// may be out of date until they refresh.
	EventStale = "realtime:stale"
)

// Channel naming: personal feeds are keyed by user, team/kanban feeds by
// organizational unit or engagement.
func UserChannel(userID uuid.UUID) string       { return "user/" + userID.String() }
func UnitChannel(unitID uuid.UUID) string       { return "unit/" + unitID.String() }
func EngagementChannel(id uuid.UUID) string     { return "engagement/" + id.String() }

// Event is a single typed notification. Delivery is at-least-once; the ID
// lets consumers drop duplicates.
type Event struct {
	ID        uuid.UUID       `json:"event_id"`
	Type      string          `json:"type"`
	Channel   string          `json:"channel"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func NewEvent(eventType, channel string, payload any) (Event, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Event{}, err
		}
		raw = data
	}
	return Event{
		ID:        uuid.New(),
		Type:      eventType,
		Channel:   channel,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	}, nil
}
