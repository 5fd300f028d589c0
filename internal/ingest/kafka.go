package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
)

// MessageHandler processes one observation payload from the pipeline topic.
type MessageHandler func(ctx context.Context, key, value []byte) error

type ConsumerConfig struct {
	Brokers        []string
	Topic          string
	GroupID        string
	SessionTimeout time.Duration
}

// Consumer delivers observation events from Kafka to the analytics service.
// The detection pipeline publishes one message per inference cycle.
type Consumer struct {
	group   sarama.ConsumerGroup
	topics  []string
	handler MessageHandler
	log     zerolog.Logger
}

func NewConsumer(cfg ConsumerConfig, handler MessageHandler, log zerolog.Logger) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Version = sarama.V3_3_0_0
	config.Consumer.Return.Errors = true
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	if cfg.SessionTimeout > 0 {
		config.Consumer.Group.Session.Timeout = cfg.SessionTimeout
		config.Consumer.Group.Heartbeat.Interval = cfg.SessionTimeout / 3
	}

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, config)
	if err != nil {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Str("group_id", cfg.GroupID).
		Msg("kafka consumer initialized")

	return &Consumer{
		group:   group,
		topics:  []string{cfg.Topic},
		handler: handler,
		log:     log,
	}, nil
}

// Start consumes until the context is cancelled. Consume returns on every
// rebalance, so it runs in a loop.
func (c *Consumer) Start(ctx context.Context) error {
	for {
		if err := c.group.Consume(ctx, c.topics, c); err != nil {
			c.log.Error().Err(err).Msg("consumer error")
		}
		if ctx.Err() != nil {
			c.log.Info().Msg("context cancelled, stopping consumer")
			return ctx.Err()
		}
	}
}

func (c *Consumer) Close() error {
	if err := c.group.Close(); err != nil {
		c.log.Error().Err(err).Msg("failed to close consumer group")
		return err
	}
	return nil
}

func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim processes messages from one partition. Handler failures are
// logged and the message is marked anyway: a lost observation is acceptable,
// a stuck partition is not.
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message := <-claim.Messages():
			if message == nil {
				return nil
			}
			if err := c.handler(session.Context(), message.Key, message.Value); err != nil {
				c.log.Error().
					Err(err).
					Str("topic", message.Topic).
					Int32("partition", message.Partition).
					Int64("offset", message.Offset).
					Msg("failed to process observation")
			}
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}
