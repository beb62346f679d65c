package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Wuchinator/tracks-relay/internal/event"
	"github.com/Wuchinator/tracks-relay/internal/message"
	"go.uber.org/zap"
)

type Publisher interface {
	SendMessage(ctx context.Context, key string, value any) error
}

type Service struct {
	builder          *message.Builder
	publisher        Publisher
	metrics          *Metrics
	defaultUserAgent string
	logger           *zap.Logger
}

func NewService(
	builder *message.Builder,
	publisher Publisher,
	metrics *Metrics,
	defaultUserAgent string,
	logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if builder == nil {
		builder = message.NewBuilder(logger)
	}
	return &Service{
		builder:          builder,
		publisher:        publisher,
		metrics:          metrics,
		defaultUserAgent: defaultUserAgent,
		logger:           logger,
	}
}

// BuildRequest computes the common properties once and builds every event of
// the batch against them. Events that fail validation or building are left
// out and reported in Result.Dropped. When nothing could be built the result
// carries only the dropped events and the error is ErrEmptyRequest.
func (s *Service) BuildRequest(batch *Batch) (*Result, error) {
	if batch == nil || len(batch.Events) == 0 {
		return nil, ErrEmptyBatch
	}

	started := time.Now()
	common := s.builder.CommonProperties(batch.DeviceInfo, batch.UserProperties)

	result := &Result{}
	events := make([]*message.Object, 0, len(batch.Events))

	for i, ev := range batch.Events {
		obj, reason, err := s.buildEvent(ev, common)
		if err != nil {
			dropped := DroppedEvent{Index: i, Reason: reason, Err: err}
			if ev != nil {
				dropped.Name = ev.Name
			}
			result.Dropped = append(result.Dropped, dropped)

			s.logger.Warn("Event dropped from request",
				zap.Int("index", i),
				zap.String("event_name", dropped.Name),
				zap.String("reason", reason),
				zap.Error(err),
			)
			continue
		}

		if result.Key == "" {
			result.Key = ev.User
		}
		events = append(events, obj)
	}

	s.metrics.observeBuild(len(events), result.Dropped, started)

	if len(events) == 0 {
		return result, ErrEmptyRequest
	}

	result.Request = &Request{
		Events:      events,
		CommonProps: common,
	}

	s.logger.Debug("Request built",
		zap.Int("events", len(events)),
		zap.Int("dropped", len(result.Dropped)),
		zap.Int("common_props", common.Len()),
	)

	return result, nil
}

func (s *Service) buildEvent(ev *event.Event, common *message.Object) (*message.Object, string, error) {
	if ev == nil {
		return nil, ReasonNilEvent, message.ErrNilEvent
	}

	if ev.UserAgent == "" && s.defaultUserAgent != "" {
		withUA := *ev
		withUA.UserAgent = s.defaultUserAgent
		ev = &withUA
	}

	if err := ev.Validate(); err != nil {
		return nil, ReasonInvalidEvent, err
	}

	if keys := message.ReservedKeys(ev.CustomProperties); len(keys) > 0 {
		return nil, ReasonReservedProperty, fmt.Errorf("%w: %v", ErrReservedProperty, keys)
	}

	obj, err := s.builder.EventObject(ev, common)
	if err != nil {
		return nil, ReasonBuildFailed, err
	}
	return obj, "", nil
}

// Relay builds the batch and publishes the request keyed by user so that one
// user's requests stay on one partition.
func (s *Service) Relay(ctx context.Context, batch *Batch) (*Result, error) {
	result, err := s.BuildRequest(batch)
	if err != nil {
		return result, err
	}

	if err := s.publisher.SendMessage(ctx, result.Key, result.Request); err != nil {
		s.logger.Error("failed to publish request",
			zap.String("key", result.Key),
			zap.Int("events", len(result.Request.Events)),
			zap.Error(err),
		)
		return result, fmt.Errorf("failed to publish request: %w", err)
	}

	s.metrics.observePublished()

	s.logger.Info("Request relayed",
		zap.String("key", result.Key),
		zap.Int("events", len(result.Request.Events)),
		zap.Int("dropped", len(result.Dropped)),
	)
	return result, nil
}

// CreateMessageHandler creates the Kafka consumer handler for raw batches.
func (s *Service) CreateMessageHandler() func(ctx context.Context, key, value []byte) error {
	return func(ctx context.Context, key, value []byte) error {
		// Numbers stay json.Number so large ids keep every digit.
		dec := json.NewDecoder(bytes.NewReader(value))
		dec.UseNumber()

		var batch Batch
		if err := dec.Decode(&batch); err != nil {
			s.logger.Error("Failed to unmarshal batch",
				zap.Error(err),
				zap.String("key", string(key)),
			)
			return fmt.Errorf("failed to decode batch: %w", err)
		}

		_, err := s.Relay(ctx, &batch)
		switch {
		case errors.Is(err, ErrEmptyBatch), errors.Is(err, ErrEmptyRequest):
			s.logger.Warn("Nothing to relay", zap.String("key", string(key)), zap.Error(err))
			return nil
		case err != nil:
			return err
		}
		return nil
	}
}
