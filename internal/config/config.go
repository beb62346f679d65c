package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	LogLevel    string
	HealthPort  string
	MetricsAddr string
	Kafka       KafkaConfig
	Tracks      TracksConfig
}

type KafkaConfig struct {
	Brokers           []string
	RawEventsTopic    string
	PayloadsTopic     string
	GroupID           string
	ProducerRetries   int
	ProducerTimeout   time.Duration
	RequiredAcks      int
	CompressionType   string
	MaxMessageBytes   int
	IdempotentWrites  bool
	RebalanceStrategy string
	SessionTimeout    time.Duration
	CommitInterval    time.Duration
}

type TracksConfig struct {
	// DefaultUserAgent fills _via_ua for events that arrive without one.
	DefaultUserAgent string
}

func Load() (*Config, error) {
	_ = godotenv.Load()
	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		HealthPort:  getEnv("RELAY_HEALTH_PORT", "50052"),
		MetricsAddr: getEnv("RELAY_METRICS_ADDR", ":9102"),
	}

	brokers := getEnv("KAFKA_BROKERS", "localhost:9092")
	rawTopic := getEnv("KAFKA_TOPIC_RAW_EVENTS", "tracks-raw-events")
	cfg.Kafka = KafkaConfig{
		Brokers:           splitList(brokers),
		RawEventsTopic:    rawTopic,
		PayloadsTopic:     getEnv("KAFKA_TOPIC_PAYLOADS", "tracks-payloads"),
		GroupID:           getEnv("KAFKA_GROUP_ID", rawTopic+"-relay"),
		ProducerRetries:   getEnvAsInt("KAFKA_PRODUCER_RETRIES", 3),
		ProducerTimeout:   getEnvAsDuration("KAFKA_PRODUCER_TIMEOUT", 10*time.Second),
		RequiredAcks:      getEnvAsInt("KAFKA_REQUIRED_ACKS", -1), // -1 waits for all in-sync replicas
		CompressionType:   getEnv("KAFKA_COMPRESSION", "snappy"),
		IdempotentWrites:  getEnvAsBool("KAFKA_IDEMPOTENT", true),
		MaxMessageBytes:   getEnvAsInt("KAFKA_MAX_MESSAGE_BYTES", 1000000),
		RebalanceStrategy: getEnv("KAFKA_REBALANCE_STRATEGY", "sticky"),
		SessionTimeout:    getEnvAsDuration("KAFKA_SESSION_TIMEOUT", 10*time.Second),
		CommitInterval:    getEnvAsDuration("KAFKA_COMMIT_INTERVAL", time.Second),
	}

	cfg.Tracks = TracksConfig{
		DefaultUserAgent: getEnv("TRACKS_DEFAULT_USER_AGENT", "Nosara Client for Android"),
	}

	return cfg, nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
