package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/dmitrijs2005/photomagic/internal/logging"
)

// KafkaProducer publishes jobs to a topic, keyed by task id so the runs of
// one task stay in order on one partition.
type KafkaProducer struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaProducer(brokers []string, topic string) (*KafkaProducer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true

	p, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return NewKafkaProducerFrom(p, topic), nil
}

func NewKafkaProducerFrom(p sarama.SyncProducer, topic string) *KafkaProducer {
	return &KafkaProducer{producer: p, topic: topic}
}

func (p *KafkaProducer) Dispatch(_ context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(job.TaskID),
		Value: sarama.ByteEncoder(data),
	}

	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("publish job %s: %w", job.TaskID, err)
	}
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.producer.Close()
}

// KafkaConsumer reads jobs from a topic and starts them on a Pool. An
// offset is marked once the pool has accepted the job.
type KafkaConsumer struct {
	group  sarama.ConsumerGroup
	topic  string
	pool   *Pool
	logger logging.Logger
}

func NewKafkaConsumer(brokers []string, groupID, topic string, pool *Pool, logger logging.Logger) (*KafkaConsumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetOldest

	g, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return &KafkaConsumer{group: g, topic: topic, pool: pool, logger: logger}, nil
}

// Run consumes until ctx is cancelled. Consume returns on every rebalance,
// so it is called in a loop.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	h := &consumerHandler{pool: c.pool, logger: c.logger}
	for {
		if err := c.group.Consume(ctx, []string{c.topic}, h); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			c.logger.Error(ctx, "kafka consume failed", "error", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *KafkaConsumer) Close() error {
	return c.group.Close()
}

type consumerHandler struct {
	pool   *Pool
	logger logging.Logger
}

func (h *consumerHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *consumerHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *consumerHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := session.Context()
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			var job Job
			if err := json.Unmarshal(msg.Value, &job); err != nil || job.TaskID == "" {
				h.logger.Warn(ctx, "skipping malformed job message", "offset", msg.Offset, "partition", msg.Partition)
				session.MarkMessage(msg, "")
				continue
			}
			if err := h.pool.Submit(ctx, job); err != nil {
				// not marked: the message is redelivered after rebalance
				return err
			}
			session.MarkMessage(msg, "")
		case <-ctx.Done():
			return nil
		}
	}
}
