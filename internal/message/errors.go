package message

import (
	"errors"
	"fmt"
)

var (
	ErrNilEvent = errors.New("nil event")

	ErrMalformedProperty = errors.New("malformed property")
)

// PropertyError reports a property value that has no JSON text form.
// It matches ErrMalformedProperty with errors.Is.
type PropertyError struct {
	Key string
	Err error
}

func (e *PropertyError) Error() string {
	return fmt.Sprintf("%s %q: %v", ErrMalformedProperty, e.Key, e.Err)
}

func (e *PropertyError) Unwrap() error {
	return e.Err
}

func (e *PropertyError) Is(target error) bool {
	return target == ErrMalformedProperty
}
