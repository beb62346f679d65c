package relay

import "errors"

var (
	ErrEmptyBatch = errors.New("batch has no events")

	ErrEmptyRequest = errors.New("no event in the batch could be built")

	ErrReservedProperty = errors.New("custom property uses a reserved key")
)
