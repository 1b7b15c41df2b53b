package errors

import "errors"

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrUnknownService = errors.New("service is not registered for monitoring")
	ErrNoTargets      = errors.New("no services registered for monitoring")
)
