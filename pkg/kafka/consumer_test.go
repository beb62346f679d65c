package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

type fakeSession struct {
	ctx    context.Context
	marked []*sarama.ConsumerMessage
}

func (s *fakeSession) Claims() map[string][]int32                        { return nil }
func (s *fakeSession) MemberID() string                                  { return "member" }
func (s *fakeSession) GenerationID() int32                               { return 1 }
func (s *fakeSession) MarkOffset(string, int32, int64, string)           {}
func (s *fakeSession) Commit()                                           {}
func (s *fakeSession) ResetOffset(string, int32, int64, string)          {}
func (s *fakeSession) Context() context.Context                          { return s.ctx }
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) { s.marked = append(s.marked, msg) }

type fakeClaim struct {
	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Topic() string                            { return "tracks-raw-events" }
func (c *fakeClaim) Partition() int32                         { return 0 }
func (c *fakeClaim) InitialOffset() int64                     { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64               { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

func TestConsumer_ConsumeClaimMarksEveryMessage(t *testing.T) {
	var handled []string
	c := &Consumer{
		handler: func(ctx context.Context, key, value []byte) error {
			handled = append(handled, string(value))
			if string(value) == "bad" {
				return errors.New("cannot decode")
			}
			return nil
		},
		logger: zap.NewNop(),
		ready:  make(chan struct{}),
	}

	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 2)}
	claim.messages <- &sarama.ConsumerMessage{Topic: "tracks-raw-events", Value: []byte("good")}
	claim.messages <- &sarama.ConsumerMessage{Topic: "tracks-raw-events", Value: []byte("bad"), Offset: 1}
	close(claim.messages)

	session := &fakeSession{ctx: context.Background()}
	if err := c.ConsumeClaim(session, claim); err != nil {
		t.Fatalf("ConsumeClaim: %v", err)
	}

	if len(handled) != 2 {
		t.Errorf("handled %d messages, want 2", len(handled))
	}
	if len(session.marked) != 2 {
		t.Errorf("marked %d messages, want 2", len(session.marked))
	}
}

func TestConsumer_ConsumeClaimStopsOnSessionEnd(t *testing.T) {
	c := &Consumer{
		handler: func(context.Context, []byte, []byte) error { return nil },
		logger:  zap.NewNop(),
		ready:   make(chan struct{}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() {
		done <- c.ConsumeClaim(&fakeSession{ctx: ctx}, &fakeClaim{messages: make(chan *sarama.ConsumerMessage)})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ConsumeClaim: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("ConsumeClaim did not return after the session ended")
	}
}

func TestConsumer_SetupClosesReadyOnce(t *testing.T) {
	c := &Consumer{logger: zap.NewNop(), ready: make(chan struct{})}

	if err := c.Setup(nil); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := c.Setup(nil); err != nil {
		t.Fatalf("second Setup: %v", err)
	}

	select {
	case <-c.WaitReady():
	default:
		t.Error("ready channel should be closed after Setup")
	}
}

func TestBalanceStrategy(t *testing.T) {
	tests := map[string]string{
		"sticky":     sarama.StickyBalanceStrategyName,
		"roundrobin": sarama.RoundRobinBalanceStrategyName,
		"range":      sarama.RangeBalanceStrategyName,
		"":           sarama.RangeBalanceStrategyName,
	}
	for name, want := range tests {
		if got := balanceStrategy(name).Name(); got != want {
			t.Errorf("balanceStrategy(%q) = %s, want %s", name, got, want)
		}
	}
}

func TestNewConsumerConfig(t *testing.T) {
	cfg := newConsumerConfig(ConsumerConfig{
		AutoCommit:     true,
		CommitInterval: 2 * time.Second,
		SessionTimeout: 12 * time.Second,
	})

	if cfg.Consumer.Offsets.Initial != sarama.OffsetOldest {
		t.Error("consumer should start from the oldest offset")
	}
	if cfg.Consumer.Group.Heartbeat.Interval != 4*time.Second {
		t.Errorf("heartbeat = %v, want a third of the session timeout", cfg.Consumer.Group.Heartbeat.Interval)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("config should be valid: %v", err)
	}
}
