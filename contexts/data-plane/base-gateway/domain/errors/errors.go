package errors

import "errors"

var (
	ErrInvalidRequest         = errors.New("invalid request")
	ErrBaseIDRequired         = errors.New("base_id is required: provide it in the request or set AIRTABLE_BASE")
	ErrInvalidBaseID          = errors.New("base id is malformed: expected app followed by 14 alphanumerics")
	ErrTableNotFound          = errors.New("table not found")
	ErrRecordNotFound         = errors.New("record not found")
	ErrEmptyUpdate            = errors.New("update requires at least one field")
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	ErrIdempotencyConflict    = errors.New("idempotency key reused with different request")
	ErrUpstreamUnavailable    = errors.New("airtable upstream unavailable")
	ErrRateLimited            = errors.New("airtable rate limit exceeded")
)
