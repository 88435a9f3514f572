package infra

import (
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/ronalsilva/waller-microservice/internal/config"
)

// NewSaramaConfig builds the client configuration shared by the producer and
// the consumer groups. Consumers start from the newest offset so responses
// published before startup are never replayed.
func NewSaramaConfig(cfg config.KafkaConfig) (*sarama.Config, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}

	sc := sarama.NewConfig()
	sc.ClientID = cfg.ClientID
	sc.Version = sarama.V3_0_0_0

	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 8
	sc.Producer.Retry.Backoff = 100 * time.Millisecond
	sc.Producer.Partitioner = sarama.NewHashPartitioner

	sc.Consumer.Return.Errors = true
	sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	sc.Consumer.Group.Session.Timeout = 20 * time.Second
	sc.Consumer.Group.Heartbeat.Interval = 6 * time.Second

	sc.Metadata.Retry.Max = 8
	sc.Metadata.Retry.Backoff = 100 * time.Millisecond

	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("validate kafka config: %w", err)
	}
	return sc, nil
}
