package eventbus_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/assignment-engine/pkg/eventbus"
)

type createdEvent struct {
	ID string
}

type updatedEvent struct {
	ID string
}

func TestPublishMatchesBySignature(t *testing.T) {
	bus := eventbus.NewEventPublisher(nil)

	var created []createdEvent
	var updated []updatedEvent
	bus.Subscribe(func(ev createdEvent) { created = append(created, ev) })
	bus.Subscribe(func(ev updatedEvent) { updated = append(updated, ev) })

	bus.Publish(createdEvent{ID: "a"})
	bus.Publish(updatedEvent{ID: "b"})
	bus.Publish(createdEvent{ID: "c"})

	require.Len(t, created, 2)
	require.Len(t, updated, 1)
	require.Equal(t, "a", created[0].ID)
	require.Equal(t, "b", updated[0].ID)
}

func TestPublishRecoversPanickingHandler(t *testing.T) {
	bus := eventbus.NewEventPublisher(nil)

	var delivered int
	bus.Subscribe(func(ev createdEvent) { panic("boom") })
	bus.Subscribe(func(ev createdEvent) { delivered++ })

	require.NotPanics(t, func() {
		bus.Publish(createdEvent{ID: "a"})
	})
	require.Equal(t, 1, delivered, "healthy handler still runs after a sibling panics")
}

func TestUnsubscribe(t *testing.T) {
	bus := eventbus.NewEventPublisher(nil)

	var calls int
	handler := func(ev createdEvent) { calls++ }
	bus.Subscribe(handler)
	require.Equal(t, 1, bus.SubscribersCount())

	bus.Publish(createdEvent{})
	bus.Unsubscribe(handler)
	require.Zero(t, bus.SubscribersCount())

	bus.Publish(createdEvent{})
	require.Equal(t, 1, calls)
}

func TestMatchSignature(t *testing.T) {
	require.True(t, eventbus.MatchSignature(func(createdEvent) {}, []interface{}{createdEvent{}}))
	require.False(t, eventbus.MatchSignature(func(createdEvent) {}, []interface{}{updatedEvent{}}))
	require.False(t, eventbus.MatchSignature(func(createdEvent, string) {}, []interface{}{createdEvent{}}))
	require.False(t, eventbus.MatchSignature("not a func", []interface{}{createdEvent{}}))
	require.True(t, eventbus.MatchSignature(func(error) {}, []interface{}{nil}))
}

func TestSubscribeRejectsNonFunction(t *testing.T) {
	bus := eventbus.NewEventPublisher(nil)
	require.Panics(t, func() { bus.Subscribe(42) })
}
