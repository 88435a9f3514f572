package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/ronalsilva/waller-microservice/internal/logging"
)

// GroupFactory opens a consumer group with the given id.
type GroupFactory func(groupID string) (sarama.ConsumerGroup, error)

// Subscriber consumes a topic through a consumer group private to this
// process, so every instance sees every message on the topic.
type Subscriber struct {
	newGroup GroupFactory
	groupID  string
	logger   *slog.Logger
}

// NewSubscriber builds a subscriber whose group id is groupPrefix suffixed
// with a random instance id.
func NewSubscriber(brokers []string, groupPrefix string, cfg *sarama.Config, logger *slog.Logger) *Subscriber {
	return NewSubscriberWithFactory(func(groupID string) (sarama.ConsumerGroup, error) {
		return sarama.NewConsumerGroup(brokers, groupID, cfg)
	}, groupPrefix, logger)
}

// NewSubscriberWithFactory is NewSubscriber with a caller-supplied group constructor.
func NewSubscriberWithFactory(factory GroupFactory, groupPrefix string, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		newGroup: factory,
		groupID:  fmt.Sprintf("%s-%s", groupPrefix, uuid.NewString()),
		logger:   logging.Component(logger, "kafka_subscriber"),
	}
}

// GroupID returns the consumer group used by this subscriber.
func (s *Subscriber) GroupID() string {
	return s.groupID
}

// Subscribe opens a fresh consumer group session on topic and blocks until ctx
// is cancelled or consumption fails. Each message is passed to handle and then
// marked.
func (s *Subscriber) Subscribe(ctx context.Context, topic string, handle func(ctx context.Context, value []byte)) error {
	group, err := s.newGroup(s.groupID)
	if err != nil {
		return fmt.Errorf("create consumer group %s: %w", s.groupID, err)
	}
	defer func() {
		if err := group.Close(); err != nil {
			s.logger.Warn("close consumer group", slog.Any("error", err))
		}
	}()

	go func() {
		for err := range group.Errors() {
			s.logger.Error("consumer group error", slog.String("topic", topic), slog.Any("error", err))
		}
	}()

	s.logger.Info("subscribed", slog.String("topic", topic), slog.String("group_id", s.groupID))
	handler := &groupHandler{handle: handle}
	for {
		if err := group.Consume(ctx, []string{topic}, handler); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return err
			}
			return fmt.Errorf("consume %s: %w", topic, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// groupHandler implements sarama.ConsumerGroupHandler.
type groupHandler struct {
	handle func(ctx context.Context, value []byte)
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			h.handle(sess.Context(), msg.Value)
			sess.MarkMessage(msg, "")
		case <-sess.Context().Done():
			return nil
		}
	}
}
