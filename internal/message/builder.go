// Package message turns tracks events into the flat key/value JSON objects
// accepted by the ingestion endpoint.
//
// Every property value is sent as a string. Device and user properties are
// prefixed and lowercased so they never collide with the reserved top-level
// keys, and event-level properties identical to the batch's common
// properties are left out.
package message

import (
	"errors"

	"github.com/Wuchinator/tracks-relay/internal/event"
	"go.uber.org/zap"
)

// DeviceInfoProvider exposes the two groups of device attributes.
type DeviceInfoProvider interface {
	ImmutableDeviceInfo() map[string]any
	MutableDeviceInfo() map[string]any
}

// Builder holds no mutable state and is safe for concurrent use.
type Builder struct {
	logger *zap.Logger
}

func NewBuilder(logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{logger: logger}
}

// CommonProperties flattens immutable device info, mutable device info and
// user properties, in that order, into one object. Later groups overwrite
// earlier ones on key collision. Values that cannot be rendered are logged
// and left out.
func (b *Builder) CommonProperties(device DeviceInfoProvider, userProperties map[string]any) *Object {
	common := NewObject()

	var immutable, mutable map[string]any
	if device != nil {
		immutable = device.ImmutableDeviceInfo()
		mutable = device.MutableDeviceInfo()
	}

	err := errors.Join(
		b.Flatten(common, immutable, WithPrefix(DeviceInfoPrefix)),
		b.Flatten(common, mutable, WithPrefix(DeviceInfoPrefix)),
		b.Flatten(common, userProperties, WithPrefix(UserInfoPrefix)),
	)
	if err != nil {
		b.logger.Error("Cannot write the flattened representation of common properties", zap.Error(err))
	}

	return common
}

// EventObject builds the JSON object for a single event. User and device
// properties already carried by common with the same value are omitted.
//
// It returns ErrNilEvent for a nil event and an error matching
// ErrMalformedProperty when a property value has no JSON text form. The
// caller decides whether to drop the event.
func (b *Builder) EventObject(ev *event.Event, common *Object) (*Object, error) {
	if ev == nil {
		return nil, ErrNilEvent
	}

	obj := NewObject()
	obj.Put(KeyEventName, ev.Name)
	obj.Put(KeyUserAgent, ev.UserAgent)
	obj.Put(KeyTimestamp, ev.Timestamp)

	if ev.IsAnonymous() {
		obj.Put(KeyUserType, UserTypeAnon)
		obj.Put(KeyUserID, ev.User)
	} else {
		// The server defaults to an authenticated user when _ut is missing.
		obj.Put(KeyUserLogin, ev.User)
	}

	err := errors.Join(
		b.Flatten(obj, ev.UserProperties, WithPrefix(UserInfoPrefix), WithBaseline(common)),
		b.Flatten(obj, ev.DeviceInfo, WithPrefix(DeviceInfoPrefix), WithBaseline(common)),
		b.Flatten(obj, ev.CustomProperties, WithPrefix("")),
	)
	if err != nil {
		b.logger.Error("Cannot write the JSON representation of the event",
			zap.String("event_name", ev.Name),
			zap.Error(err),
		)
		return nil, err
	}

	if ev.Name == AliasUserEventName {
		b.renameAliasAnonID(obj)
	}

	return obj, nil
}

// The alias-user event is the one place where the backend expects a
// camelCase property name.
func (b *Builder) renameAliasAnonID(obj *Object) {
	anonID, ok := obj.Remove(aliasAnonIDFlatKey)
	if !ok {
		b.logger.Debug("Alias user event without anonymous id",
			zap.String("event_name", AliasUserEventName),
		)
		return
	}
	obj.Put(AliasAnonIDKey, anonID)
}
