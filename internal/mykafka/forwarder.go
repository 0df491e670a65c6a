package mykafka

import (
	"context"
	"fmt"

	"github.com/stagehand/backline/internal/lifecycle"
	"github.com/stagehand/backline/internal/logging"
)

// Forwarder mirrors lifecycle events onto a kafka topic for external
// consumers. Publish failures are logged and swallowed: the event bus
// is a side channel, never part of the mutating operation.
func Forwarder(p *Producer, topic string) lifecycle.Subscriber {
	return func(ctx context.Context, ev lifecycle.Event) {
		key := fmt.Sprintf("%s:%d", ev.Entity, ev.EntityID)
		if err := p.PublishEvent(ctx, topic, key, ev); err != nil {
			logging.FromContext(ctx).Warn("lifecycle_event_publish_failed",
				"topic", topic, "entity", ev.Entity, "entity_id", ev.EntityID, "error", err)
		}
	}
}
