package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

type Producer struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

type ProducerConfig struct {
	Brokers []string
	Topic   string
	Retries int
	Timeout time.Duration

	RequiredAcks     int
	Compression      string
	IdempotentWrites bool
	MaxMessageBytes  int
}

func NewProducer(cfg ProducerConfig, logger *zap.Logger) (*Producer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	producer, err := sarama.NewSyncProducer(cfg.Brokers, newProducerConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	logger.Info("Kafka producer initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic),
		zap.Bool("idempotent", cfg.IdempotentWrites),
		zap.String("compression", cfg.Compression),
	)

	return NewProducerFromSync(producer, cfg.Topic, logger), nil
}

// NewProducerFromSync wraps an existing sync producer, e.g. a sarama mock.
func NewProducerFromSync(producer sarama.SyncProducer, topic string, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Producer{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

func newProducerConfig(cfg ProducerConfig) *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	config.Producer.Retry.Max = cfg.Retries
	if cfg.Timeout > 0 {
		config.Producer.Timeout = cfg.Timeout
	}
	config.Producer.RequiredAcks = sarama.RequiredAcks(cfg.RequiredAcks)
	config.Producer.Idempotent = cfg.IdempotentWrites

	if cfg.IdempotentWrites {
		config.Producer.RequiredAcks = sarama.WaitForAll
		config.Producer.Retry.Max = 5
		config.Net.MaxOpenRequests = 1
	}

	config.Producer.Compression = compressionCodec(cfg.Compression)

	if cfg.MaxMessageBytes > 0 {
		config.Producer.MaxMessageBytes = cfg.MaxMessageBytes
	}
	config.Producer.Partitioner = sarama.NewHashPartitioner
	config.Version = sarama.V3_3_0_0

	return config
}

func compressionCodec(name string) sarama.CompressionCodec {
	switch name {
	case "snappy":
		return sarama.CompressionSnappy
	case "zstd":
		return sarama.CompressionZSTD
	case "lz4":
		return sarama.CompressionLZ4
	case "gzip":
		return sarama.CompressionGZIP
	default:
		return sarama.CompressionNone
	}
}

// SendMessage publishes value under key. A []byte value is sent as is,
// anything else is JSON encoded first.
func (p *Producer) SendMessage(ctx context.Context, key string, value any) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	valueBytes, ok := value.([]byte)
	if !ok {
		var err error
		valueBytes, err = json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal value: %w", err)
		}
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(valueBytes),

		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("timestamp"),
				Value: []byte(time.Now().Format(time.RFC3339Nano)),
			},
			{
				Key:   []byte("content-type"),
				Value: []byte("application/json"),
			},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.Error("Failed to send message to Kafka",
			zap.Error(err),
			zap.String("topic", p.topic),
			zap.String("key", key),
		)
		return fmt.Errorf("failed to send message: %w", err)
	}

	p.logger.Debug("Message sent to Kafka",
		zap.String("topic", p.topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
		zap.String("key", key),
	)

	return nil
}

func (p *Producer) Close() error {
	err := p.producer.Close()
	if err != nil {
		p.logger.Error("Failed to close Kafka producer", zap.Error(err))
		return fmt.Errorf("failed to close producer: %w", err)
	}
	p.logger.Info("Kafka producer closed")
	return nil
}
