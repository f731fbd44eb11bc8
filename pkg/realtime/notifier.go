package realtime

import (
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/assignment-engine/pkg/ws"
)

// Notifier delivers events to a logical channel. Implementations must not
// block the caller; mutation paths treat delivery as fire-and-forget.
type Notifier interface {
	Publish(channel string, event Event) error
}

// HubNotifier delivers events to websocket clients joined to the channel.
type HubNotifier struct {
	hub    *ws.Hub
	logger *logrus.Logger
}

func NewHubNotifier(hub *ws.Hub, logger *logrus.Logger) *HubNotifier {
	return &HubNotifier{hub: hub, logger: logger}
}

func (n *HubNotifier) Publish(channel string, event Event) error {
	event.Channel = channel
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if channel == "" {
		// empty channel addresses every connected client (stale markers)
		n.hub.Broadcast(data)
		return nil
	}
	n.hub.BroadcastToChannel(channel, data)
	return nil
}

// FanoutNotifier publishes to several notifiers; the first error is returned
// after all of them were attempted.
type FanoutNotifier struct {
	targets []Notifier
}

func NewFanoutNotifier(targets ...Notifier) *FanoutNotifier {
	return &FanoutNotifier{targets: targets}
}

func (n *FanoutNotifier) Publish(channel string, event Event) error {
	var first error
	for _, t := range n.targets {
		if err := t.Publish(channel, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
