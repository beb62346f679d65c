package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Wuchinator/tracks-relay/internal/config"
	"github.com/Wuchinator/tracks-relay/internal/event"
	"github.com/Wuchinator/tracks-relay/internal/message"
	"github.com/Wuchinator/tracks-relay/internal/relay"
	"github.com/Wuchinator/tracks-relay/pkg/kafka"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:         cfg.Kafka.Brokers,
		Topic:           cfg.Kafka.RawEventsTopic,
		Retries:         cfg.Kafka.ProducerRetries,
		Timeout:         cfg.Kafka.ProducerTimeout,
		RequiredAcks:    cfg.Kafka.RequiredAcks,
		Compression:     cfg.Kafka.CompressionType,
		MaxMessageBytes: cfg.Kafka.MaxMessageBytes,
	}, zap.NewNop())
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer producer.Close()

	anonID := event.NewAnonymousID()
	ua := cfg.Tracks.DefaultUserAgent

	opened := event.NewEvent("reader_article_opened", ua, anonID, event.UserTypeAnonymous)
	opened.DeviceInfo = map[string]any{"network": "cellular"}
	opened.CustomProperties = map[string]any{"blog_id": 12345, "source": "reader"}

	login := event.NewEvent("account_logged_in", ua, "jane", event.UserTypeAuthenticated)
	login.UserProperties = map[string]any{"plan": "premium"}

	alias := event.NewEvent(message.AliasUserEventName, ua, "jane", event.UserTypeAuthenticated)
	alias.CustomProperties = map[string]any{"anonid": anonID}

	batch := &relay.Batch{
		DeviceInfo: &event.DeviceInformation{
			Immutable: map[string]any{"model": "Pixel 8", "os": "Android", "os_version": "14"},
			Mutable:   map[string]any{"network": "wifi", "orientation": "portrait"},
		},
		UserProperties: map[string]any{"locale": "en_US", "plan": "free"},
		Events:         []*event.Event{opened, login, alias},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	fmt.Printf("Sending batch of %d events for %s\n", len(batch.Events), anonID)
	if err := producer.SendMessage(ctx, anonID, batch); err != nil {
		log.Fatalf("Failed to send batch: %v", err)
	}

	fmt.Println("Batch sent")
}
