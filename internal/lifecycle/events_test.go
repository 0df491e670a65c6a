package lifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stagehand/backline/internal/actor"
)

func TestBusFansOutInOrder(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	var order []string
	bus.Subscribe(func(_ context.Context, ev Event) { order = append(order, "first") })
	bus.Subscribe(func(_ context.Context, ev Event) { order = append(order, "second") })

	bus.Publish(context.Background(), Event{
		Kind:     EventDeleted,
		Entity:   EntityUsers,
		EntityID: 3,
		Actor:    actor.Ref{Guard: actor.GuardAdmin, ID: 7},
	})

	require.Equal(t, []string{"first", "second"}, order)
}

func TestBusStampsEvent(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	var got Event
	bus.Subscribe(func(_ context.Context, ev Event) { got = ev })

	bus.Publish(context.Background(), Event{
		Kind:   EventCreated,
		Entity: EntityArtists,
		Actor:  actor.Ref{Guard: actor.GuardUser, ID: 12},
	})

	require.Equal(t, "user:12", got.ActorRef)
	require.False(t, got.At.IsZero())
}
