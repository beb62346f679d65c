package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

type MessageHandler func(ctx context.Context, key, value []byte) error

type Consumer struct {
	consumerGroup sarama.ConsumerGroup
	topics        []string
	handler       MessageHandler
	logger        *zap.Logger
	ready         chan struct{}
}

type ConsumerConfig struct {
	Brokers           []string
	Topics            []string
	GroupID           string
	AutoCommit        bool
	CommitInterval    time.Duration
	SessionTimeout    time.Duration
	RebalanceStrategy string
}

func NewConsumer(cfg ConsumerConfig, handler MessageHandler, logger *zap.Logger) (*Consumer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, newConsumerConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	logger.Info("Kafka consumer initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.Strings("topics", cfg.Topics),
		zap.String("group_id", cfg.GroupID),
		zap.String("rebalance_strategy", cfg.RebalanceStrategy),
	)

	return &Consumer{
		consumerGroup: consumerGroup,
		topics:        cfg.Topics,
		handler:       handler,
		logger:        logger,
		ready:         make(chan struct{}),
	}, nil
}

func newConsumerConfig(cfg ConsumerConfig) *sarama.Config {
	config := sarama.NewConfig()
	config.Version = sarama.V3_3_0_0
	config.Consumer.Return.Errors = true

	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Consumer.Offsets.AutoCommit.Enable = cfg.AutoCommit
	if cfg.CommitInterval > 0 {
		config.Consumer.Offsets.AutoCommit.Interval = cfg.CommitInterval
	}

	if cfg.SessionTimeout > 0 {
		config.Consumer.Group.Session.Timeout = cfg.SessionTimeout
		config.Consumer.Group.Heartbeat.Interval = cfg.SessionTimeout / 3
	}

	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{
		balanceStrategy(cfg.RebalanceStrategy),
	}

	return config
}

// balanceStrategy maps a config name to a sarama strategy. Sticky keeps
// assignments across rebalances, roundrobin spreads partitions evenly and
// range, the default, assigns them in contiguous blocks.
func balanceStrategy(name string) sarama.BalanceStrategy {
	switch name {
	case "sticky":
		return sarama.NewBalanceStrategySticky()
	case "roundrobin":
		return sarama.NewBalanceStrategyRoundRobin()
	default:
		return sarama.NewBalanceStrategyRange()
	}
}

// Start blocks until ctx is cancelled. Consume returns on every rebalance,
// so it is called in a loop.
func (c *Consumer) Start(ctx context.Context) error {
	go func() {
		for err := range c.consumerGroup.Errors() {
			c.logger.Error("Consumer group error", zap.Error(err))
		}
	}()

	for {
		if err := c.consumerGroup.Consume(ctx, c.topics, c); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			c.logger.Error("Error from consumer", zap.Error(err))
		}

		if ctx.Err() != nil {
			c.logger.Info("Context cancelled, stopping consumer")
			return nil
		}
	}
}

func (c *Consumer) Close() error {
	if err := c.consumerGroup.Close(); err != nil {
		c.logger.Error("Failed to close consumer group", zap.Error(err))
		return err
	}
	c.logger.Info("Kafka consumer closed")
	return nil
}

// Setup runs at the start of every session, after a rebalance.
func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	c.logger.Info("Consumer group rebalanced")
	select {
	case <-c.ready:
	default:
		close(c.ready)
	}
	return nil
}

func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim hands every message of one partition to the handler. Messages
// are marked even when the handler fails; the relay does not redeliver.
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}

			c.logger.Debug("Message received",
				zap.String("topic", message.Topic),
				zap.Int32("partition", message.Partition),
				zap.Int64("offset", message.Offset),
				zap.String("key", string(message.Key)),
			)

			if err := c.handler(session.Context(), message.Key, message.Value); err != nil {
				c.logger.Error("Failed to process message",
					zap.Error(err),
					zap.String("topic", message.Topic),
					zap.Int32("partition", message.Partition),
					zap.Int64("offset", message.Offset),
				)
			}
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

// WaitReady is closed once the first session has been set up.
func (c *Consumer) WaitReady() <-chan struct{} {
	return c.ready
}
