package message

import (
	"bytes"
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Object is a JSON object that remembers key insertion order. Overwriting a
// key keeps its original position. The zero value is an empty object.
type Object struct {
	pairs *orderedmap.OrderedMap[string, any]
}

func NewObject() *Object {
	return &Object{pairs: orderedmap.New[string, any]()}
}

// Put stores value under key. Put on a nil object is a no-op.
func (o *Object) Put(key string, value any) {
	if o == nil {
		return
	}
	if o.pairs == nil {
		o.pairs = orderedmap.New[string, any]()
	}
	o.pairs.Set(key, value)
}

func (o *Object) Get(key string) (any, bool) {
	if o == nil || o.pairs == nil {
		return nil, false
	}
	return o.pairs.Get(key)
}

// GetString returns the string form of the value stored under key. ok is
// false when the key is absent, holds nil, or cannot be rendered.
func (o *Object) GetString(key string) (string, bool) {
	v, ok := o.Get(key)
	if !ok || v == nil {
		return "", false
	}
	s, err := stringify(v)
	if err != nil {
		return "", false
	}
	return s, true
}

func (o *Object) Has(key string) bool {
	_, ok := o.Get(key)
	return ok
}

func (o *Object) Remove(key string) (any, bool) {
	if o == nil || o.pairs == nil {
		return nil, false
	}
	return o.pairs.Delete(key)
}

func (o *Object) Keys() []string {
	if o == nil || o.pairs == nil {
		return nil
	}
	out := make([]string, 0, o.pairs.Len())
	for pair := o.pairs.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

func (o *Object) Len() int {
	if o == nil || o.pairs == nil {
		return 0
	}
	return o.pairs.Len()
}

// Map returns an unordered copy of the object.
func (o *Object) Map() map[string]any {
	out := make(map[string]any, o.Len())
	if o == nil || o.pairs == nil {
		return out
	}
	for pair := o.pairs.Oldest(); pair != nil; pair = pair.Next() {
		out[pair.Key] = pair.Value
	}
	return out
}

func (o *Object) MarshalJSON() ([]byte, error) {
	if o == nil {
		return []byte("null"), nil
	}
	if o.pairs == nil {
		return []byte("{}"), nil
	}
	return o.pairs.MarshalJSON()
}

// UnmarshalJSON replaces the contents of o with a JSON object, keeping the
// document's key order. Numbers are kept as json.Number.
func (o *Object) UnmarshalJSON(data []byte) error {
	raw := orderedmap.New[string, json.RawMessage]()
	if err := raw.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("failed to decode object: %w", err)
	}

	pairs := orderedmap.New[string, any]()
	for pair := raw.Oldest(); pair != nil; pair = pair.Next() {
		dec := json.NewDecoder(bytes.NewReader(pair.Value))
		dec.UseNumber()

		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("failed to decode %q: %w", pair.Key, err)
		}
		pairs.Set(pair.Key, value)
	}

	o.pairs = pairs
	return nil
}
