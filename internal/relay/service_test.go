package relay

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Wuchinator/tracks-relay/internal/event"
	"github.com/Wuchinator/tracks-relay/internal/message"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type sentMessage struct {
	key   string
	value any
}

type fakePublisher struct {
	sent []sentMessage
	err  error
}

func (p *fakePublisher) SendMessage(ctx context.Context, key string, value any) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, sentMessage{key: key, value: value})
	return nil
}

func newTestService(t *testing.T, pub Publisher) (*Service, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	log := zap.NewNop()
	return NewService(message.NewBuilder(log), pub, NewMetrics(reg), "Nosara Client for Android", log), reg
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func sampleBatch() *Batch {
	return &Batch{
		DeviceInfo: &event.DeviceInformation{
			Immutable: map[string]any{"model": "pixel", "os": "android"},
			Mutable:   map[string]any{"network": "wifi"},
		},
		UserProperties: map[string]any{"locale": "en_US"},
		Events: []*event.Event{
			{
				Name:       "reader_article_opened",
				UserAgent:  "Nosara Client for Android 1.0",
				Timestamp:  1700000000000,
				User:       "0f3c1a2b",
				UserType:   event.UserTypeAnonymous,
				DeviceInfo: map[string]any{"model": "pixel", "network": "cellular"},
			},
			{
				Name:             message.AliasUserEventName,
				Timestamp:        1700000000500,
				User:             "jane",
				UserType:         event.UserTypeAuthenticated,
				CustomProperties: map[string]any{"anonid": "0f3c1a2b"},
			},
		},
	}
}

func TestService_BuildRequest(t *testing.T) {
	svc, reg := newTestService(t, &fakePublisher{})

	result, err := svc.BuildRequest(sampleBatch())
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}
	if len(result.Dropped) != 0 {
		t.Fatalf("unexpected dropped events: %+v", result.Dropped)
	}
	if result.Key != "0f3c1a2b" {
		t.Errorf("Key = %q, want the first event's user", result.Key)
	}

	req := result.Request
	if got, _ := req.CommonProps.GetString("device_info_model"); got != "pixel" {
		t.Errorf("common device_info_model = %q", got)
	}
	if len(req.Events) != 2 {
		t.Fatalf("events = %d, want 2", len(req.Events))
	}

	first := req.Events[0]
	if first.Has("device_info_model") {
		t.Error("device_info_model matches common and should be suppressed")
	}
	if got, _ := first.GetString("device_info_network"); got != "cellular" {
		t.Errorf("device_info_network = %q, want cellular", got)
	}

	alias := req.Events[1]
	if got, _ := alias.GetString(message.KeyUserAgent); got != "Nosara Client for Android" {
		t.Errorf("_via_ua = %q, want the default user agent", got)
	}
	if got, _ := alias.GetString(message.AliasAnonIDKey); got != "0f3c1a2b" {
		t.Errorf("anonId = %q", got)
	}

	if v := counterValue(t, reg, "tracks_relay_events_built_total", nil); v != 2 {
		t.Errorf("events built = %v, want 2", v)
	}
}

func TestService_BuildRequestDoesNotMutateInput(t *testing.T) {
	svc, _ := newTestService(t, &fakePublisher{})
	batch := sampleBatch()

	if _, err := svc.BuildRequest(batch); err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}
	if batch.Events[1].UserAgent != "" {
		t.Error("default user agent must not be written back into the batch")
	}
}

func TestService_BuildRequestDropsBadEvents(t *testing.T) {
	svc, reg := newTestService(t, &fakePublisher{})

	batch := sampleBatch()
	batch.Events = append(batch.Events,
		nil,
		&event.Event{Name: "", User: "u"},
		&event.Event{Name: "x", User: "u", CustomProperties: map[string]any{"_EN": "spoof"}},
		&event.Event{Name: "y", User: "u", CustomProperties: map[string]any{"cb": func() {}}},
	)

	result, err := svc.BuildRequest(batch)
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}
	if len(result.Request.Events) != 2 {
		t.Errorf("built %d events, want 2", len(result.Request.Events))
	}

	wantReasons := []string{ReasonNilEvent, ReasonInvalidEvent, ReasonReservedProperty, ReasonBuildFailed}
	if len(result.Dropped) != len(wantReasons) {
		t.Fatalf("dropped %d events, want %d", len(result.Dropped), len(wantReasons))
	}
	for i, want := range wantReasons {
		if result.Dropped[i].Reason != want {
			t.Errorf("dropped[%d].Reason = %q, want %q", i, result.Dropped[i].Reason, want)
		}
		if result.Dropped[i].Index != i+2 {
			t.Errorf("dropped[%d].Index = %d, want %d", i, result.Dropped[i].Index, i+2)
		}
	}

	if !errors.Is(result.Dropped[1].Err, event.ErrInvalidEventName) {
		t.Errorf("invalid event error = %v", result.Dropped[1].Err)
	}
	if !errors.Is(result.Dropped[2].Err, ErrReservedProperty) {
		t.Errorf("reserved property error = %v", result.Dropped[2].Err)
	}
	if !errors.Is(result.Dropped[3].Err, message.ErrMalformedProperty) {
		t.Errorf("build error = %v", result.Dropped[3].Err)
	}

	if v := counterValue(t, reg, "tracks_relay_events_dropped_total", map[string]string{"reason": ReasonReservedProperty}); v != 1 {
		t.Errorf("reserved_property drops = %v, want 1", v)
	}
}

func TestService_BuildRequestEmpty(t *testing.T) {
	svc, _ := newTestService(t, &fakePublisher{})

	if _, err := svc.BuildRequest(nil); !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("nil batch: got %v, want ErrEmptyBatch", err)
	}
	if _, err := svc.BuildRequest(&Batch{}); !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("empty batch: got %v, want ErrEmptyBatch", err)
	}

	result, err := svc.BuildRequest(&Batch{Events: []*event.Event{{Name: "x"}}})
	if !errors.Is(err, ErrEmptyRequest) {
		t.Fatalf("got %v, want ErrEmptyRequest", err)
	}
	if result == nil || result.Request != nil || len(result.Dropped) != 1 {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestService_Relay(t *testing.T) {
	pub := &fakePublisher{}
	svc, reg := newTestService(t, pub)

	if _, err := svc.Relay(context.Background(), sampleBatch()); err != nil {
		t.Fatalf("Relay: %v", err)
	}

	if len(pub.sent) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.sent))
	}
	if pub.sent[0].key != "0f3c1a2b" {
		t.Errorf("key = %q", pub.sent[0].key)
	}

	body, err := json.Marshal(pub.sent[0].value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded struct {
		Events      []map[string]any `json:"events"`
		CommonProps map[string]any   `json:"commonProps"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(decoded.Events) != 2 || decoded.CommonProps["user_info_locale"] != "en_US" {
		t.Errorf("unexpected request body %s", body)
	}
	if decoded.Events[0]["_ut"] != "anon" {
		t.Errorf("first event _ut = %v", decoded.Events[0]["_ut"])
	}

	if v := counterValue(t, reg, "tracks_relay_requests_published_total", nil); v != 1 {
		t.Errorf("requests published = %v, want 1", v)
	}
}

func TestService_RelayPublishFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	svc, reg := newTestService(t, pub)

	result, err := svc.Relay(context.Background(), sampleBatch())
	if err == nil || !errors.Is(err, pub.err) {
		t.Fatalf("got %v, want the publisher error", err)
	}
	if result == nil || result.Request == nil {
		t.Error("the built request should still be returned")
	}
	if v := counterValue(t, reg, "tracks_relay_requests_published_total", nil); v != 0 {
		t.Errorf("requests published = %v, want 0", v)
	}
}

func TestService_MessageHandler(t *testing.T) {
	pub := &fakePublisher{}
	svc, _ := newTestService(t, pub)
	handle := svc.CreateMessageHandler()

	raw := []byte(`{
		"device_info": {"immutable": {"model": "pixel"}},
		"user_properties": {"site_id": 12345678901234567890},
		"events": [{"name": "app_opened", "user": "jane", "user_type": "authenticated", "timestamp": 1700000000000}]
	}`)
	if err := handle(context.Background(), []byte("k"), raw); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if len(pub.sent) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.sent))
	}

	req := pub.sent[0].value.(*Request)
	if got, _ := req.CommonProps.GetString("user_info_site_id"); got != "12345678901234567890" {
		t.Errorf("user_info_site_id = %q, large ids must keep every digit", got)
	}
	if got, _ := req.Events[0].GetString(message.KeyUserLogin); got != "jane" {
		t.Errorf("_ul = %q", got)
	}
}

func TestService_MessageHandlerErrors(t *testing.T) {
	pub := &fakePublisher{}
	svc, _ := newTestService(t, pub)
	handle := svc.CreateMessageHandler()

	if err := handle(context.Background(), nil, []byte(`{not json`)); err == nil {
		t.Error("expected a decode error")
	}
	if err := handle(context.Background(), nil, []byte(`{"events": []}`)); err != nil {
		t.Errorf("an empty batch is consumed without error, got %v", err)
	}
	if len(pub.sent) != 0 {
		t.Errorf("nothing should be published, got %d", len(pub.sent))
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.observeBuild(1, nil, time.Now())
	m.observePublished()
}

func TestNewService_NilDependencies(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewService(nil, pub, nil, "Nosara Client for Android", nil)

	batch := sampleBatch()
	batch.Events = append(batch.Events, &event.Event{Name: "", User: "u"})

	result, err := svc.Relay(context.Background(), batch)
	if err != nil {
		t.Fatalf("Relay: %v", err)
	}
	if len(result.Dropped) != 1 {
		t.Errorf("dropped %d events, want 1", len(result.Dropped))
	}
	if len(pub.sent) != 1 {
		t.Errorf("published %d requests, want 1", len(pub.sent))
	}
}
