package errors

import "errors"

var (
	ErrInvalidRequest         = errors.New("invalid request")
	ErrUnknownDefinition      = errors.New("saga definition is not registered")
	ErrSagaNotFound           = errors.New("saga not found")
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	ErrIdempotencyConflict    = errors.New("idempotency key reused with different request")
)
