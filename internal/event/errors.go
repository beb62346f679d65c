package event

import "errors"

var (
	ErrInvalidEventName = errors.New("invalid event name")

	ErrInvalidUser = errors.New("invalid user")

	ErrInvalidUserType = errors.New("invalid user type")
)
