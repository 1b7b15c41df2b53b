package errors

import "errors"

var (
	ErrInvalidRequest         = errors.New("invalid request")
	ErrBaseIDRequired         = errors.New("base_id is required: provide it when creating the session or set AIRTABLE_BASE")
	ErrInvalidBaseID          = errors.New("base id is malformed: expected app followed by 14 alphanumerics")
	ErrSessionNotFound        = errors.New("session not found")
	ErrBudgetExhausted        = errors.New("session token budget exhausted")
	ErrCompleterUnavailable   = errors.New("chat completer unavailable")
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	ErrIdempotencyConflict    = errors.New("idempotency key reused with different request")
	ErrTurnConflict           = errors.New("concurrent chat on session: turn sequence already taken")
)
