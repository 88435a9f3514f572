package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ronalsilva/waller-microservice/internal/notification"
)

// EventNotifier publishes notifications as JSON events on a topic.
type EventNotifier struct {
	publisher interface {
		Publish(ctx context.Context, topic string, key, value []byte) error
	}
	topic string
	now   func() time.Time
}

type event struct {
	notification.Message
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEventNotifier builds a notifier writing to topic through p.
func NewEventNotifier(p *Producer, topic string) *EventNotifier {
	return &EventNotifier{publisher: p, topic: topic, now: func() time.Time { return time.Now().UTC() }}
}

// Send publishes the message keyed by its destination.
func (n *EventNotifier) Send(ctx context.Context, message notification.Message) error {
	payload, err := json.Marshal(event{Message: message, OccurredAt: n.now()})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	return n.publisher.Publish(ctx, n.topic, []byte(message.Destination), payload)
}
