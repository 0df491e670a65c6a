package notify

import (
	"context"
	"time"

	"github.com/stagehand/backline/internal/actor"
	"github.com/stagehand/backline/internal/logging"
	"github.com/stagehand/backline/internal/mykafka"
)

// KafkaNotifier dispatches user-facing notifications onto a kafka
// topic consumed by the delivery service. Delivery is best-effort and
// non-blocking: a failed publish is logged and never surfaced to the
// operation that triggered it.
type KafkaNotifier struct {
	Producer *mykafka.Producer
	Topic    string
}

type message struct {
	RecipientGuard string    `json:"recipient_guard"`
	RecipientID    uint      `json:"recipient_id"`
	Level          string    `json:"level"`
	Message        string    `json:"message"`
	At             time.Time `json:"at"`
}

func (n *KafkaNotifier) Notify(ctx context.Context, to actor.Ref, level, msg string) {
	err := n.Producer.PublishEvent(ctx, n.Topic, to.String(), message{
		RecipientGuard: string(to.Guard),
		RecipientID:    to.ID,
		Level:          level,
		Message:        msg,
		At:             time.Now().UTC(),
	})
	if err != nil {
		logging.FromContext(ctx).Warn("notification_publish_failed",
			"recipient", to.String(), "level", level, "error", err)
	}
}
