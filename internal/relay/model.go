package relay

import (
	"github.com/Wuchinator/tracks-relay/internal/event"
	"github.com/Wuchinator/tracks-relay/internal/message"
)

// Batch is what a client submits: one device and user snapshot plus the
// events recorded since the previous batch.
type Batch struct {
	DeviceInfo     *event.DeviceInformation `json:"device_info,omitempty"`
	UserProperties map[string]any           `json:"user_properties,omitempty"`
	Events         []*event.Event           `json:"events"`
}

// Request is the body accepted by the ingestion endpoint.
type Request struct {
	Events      []*message.Object `json:"events"`
	CommonProps *message.Object   `json:"commonProps"`
}

const (
	ReasonNilEvent         = "nil_event"
	ReasonInvalidEvent     = "invalid_event"
	ReasonReservedProperty = "reserved_property"
	ReasonBuildFailed      = "build_failed"
)

type DroppedEvent struct {
	Index  int
	Name   string
	Reason string
	Err    error
}

type Result struct {
	Request *Request
	// Key is the user of the first built event, used as the Kafka message key.
	Key     string
	Dropped []DroppedEvent
}
