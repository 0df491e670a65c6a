package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/stagehand/backline/internal/actor"
)

type EventKind string

const (
	EventCreated      EventKind = "created"
	EventUpdated      EventKind = "updated"
	EventDeleted      EventKind = "deleted"
	EventRestored     EventKind = "restored"
	EventForceDeleted EventKind = "force_deleted"
)

// Event describes a committed lifecycle transition. Events fire after
// the database work is done; subscribers (cache invalidation, search
// mirror, kafka egress) must tolerate a brief staleness window.
type Event struct {
	Kind     EventKind `json:"kind"`
	Entity   string    `json:"entity"`
	EntityID uint      `json:"entity_id"`
	Actor    actor.Ref `json:"-"`
	ActorRef string    `json:"actor"`
	At       time.Time `json:"at"`
}

type Subscriber func(ctx context.Context, ev Event)

// Bus is a minimal in-process observer list. Subscribers run
// synchronously in subscription order; they are side-effect channels
// and must not influence the operation that produced the event.
type Bus struct {
	mu   sync.RWMutex
	subs []Subscriber
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) Subscribe(fn Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, fn)
}

func (b *Bus) Publish(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	ev.ActorRef = ev.Actor.String()

	b.mu.RLock()
	subs := make([]Subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, fn := range subs {
		fn(ctx, ev)
	}
}
