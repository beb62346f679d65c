package event

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UserType tells the ingestion backend how to interpret Event.User.
type UserType int

const (
	UserTypeAnonymous UserType = iota
	UserTypeAuthenticated
)

const (
	userTypeAnonText          = "anon"
	userTypeAuthenticatedText = "authenticated"
)

func (t UserType) String() string {
	switch t {
	case UserTypeAnonymous:
		return userTypeAnonText
	case UserTypeAuthenticated:
		return userTypeAuthenticatedText
	default:
		return fmt.Sprintf("UserType(%d)", int(t))
	}
}

func (t UserType) MarshalText() ([]byte, error) {
	switch t {
	case UserTypeAnonymous, UserTypeAuthenticated:
		return []byte(t.String()), nil
	default:
		return nil, ErrInvalidUserType
	}
}

func (t *UserType) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case userTypeAnonText, "anonymous":
		*t = UserTypeAnonymous
	case userTypeAuthenticatedText:
		*t = UserTypeAuthenticated
	default:
		return fmt.Errorf("%w: %q", ErrInvalidUserType, string(text))
	}
	return nil
}

// Event is a single tracks event as produced by the client.
// Timestamp is in milliseconds since the Unix epoch.
type Event struct {
	Name             string         `json:"name"`
	UserAgent        string         `json:"user_agent"`
	Timestamp        int64          `json:"timestamp"`
	User             string         `json:"user"`
	UserType         UserType       `json:"user_type"`
	DeviceInfo       map[string]any `json:"device_info,omitempty"`
	UserProperties   map[string]any `json:"user_properties,omitempty"`
	CustomProperties map[string]any `json:"custom_properties,omitempty"`
}

func NewEvent(name, userAgent, user string, userType UserType) *Event {
	return &Event{
		Name:      name,
		UserAgent: userAgent,
		Timestamp: time.Now().UTC().UnixMilli(),
		User:      user,
		UserType:  userType,
	}
}

// NewAnonymousID returns a random UUID without dashes, the shape the
// tracks client uses for anonymous users.
func NewAnonymousID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

func (e *Event) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return ErrInvalidEventName
	}
	if e.User == "" {
		return ErrInvalidUser
	}
	if e.UserType != UserTypeAnonymous && e.UserType != UserTypeAuthenticated {
		return ErrInvalidUserType
	}
	return nil
}

func (e *Event) IsAnonymous() bool {
	return e.UserType == UserTypeAnonymous
}

// DeviceInformation splits device attributes into the ones that never change
// for an install (model, OS) and the ones that may change between batches
// (network, orientation).
type DeviceInformation struct {
	Immutable map[string]any `json:"immutable,omitempty"`
	Mutable   map[string]any `json:"mutable,omitempty"`
}

func (d *DeviceInformation) ImmutableDeviceInfo() map[string]any {
	if d == nil {
		return nil
	}
	return d.Immutable
}

func (d *DeviceInformation) MutableDeviceInfo() map[string]any {
	if d == nil {
		return nil
	}
	return d.Mutable
}
