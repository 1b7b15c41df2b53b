package errors

import "errors"

var (
	ErrBaseIDRequired = errors.New("base_id is required: pass the base_id argument or set AIRTABLE_BASE")
	ErrInvalidBaseID  = errors.New("base id is malformed: expected app followed by 14 alphanumerics")
	ErrUnknownTool    = errors.New("unknown tool")
	ErrInvalidParams  = errors.New("invalid params")
	ErrUnknownMethod  = errors.New("method not found")
)
