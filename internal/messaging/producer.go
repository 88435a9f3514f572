package messaging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	"github.com/ronalsilva/waller-microservice/internal/logging"
)

// Producer publishes messages through a sarama SyncProducer.
type Producer struct {
	producer sarama.SyncProducer
	logger   *slog.Logger
}

// NewProducer wraps an existing SyncProducer.
func NewProducer(producer sarama.SyncProducer, logger *slog.Logger) *Producer {
	return &Producer{producer: producer, logger: logging.Component(logger, "kafka_producer")}
}

// DialProducer connects a SyncProducer to brokers.
func DialProducer(brokers []string, cfg *sarama.Config, logger *slog.Logger) (*Producer, error) {
	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewProducer(producer, logger), nil
}

// Publish sends value to topic and waits for the broker acknowledgement.
func (p *Producer) Publish(ctx context.Context, topic string, key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(value),
	}
	if len(key) > 0 {
		msg.Key = sarama.ByteEncoder(key)
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("send message to %s: %w", topic, err)
	}
	p.logger.Debug("message published",
		slog.String("topic", topic),
		slog.Int("partition", int(partition)),
		slog.Int64("offset", offset),
	)
	return nil
}

// Close flushes and closes the underlying producer.
func (p *Producer) Close() error {
	return p.producer.Close()
}
