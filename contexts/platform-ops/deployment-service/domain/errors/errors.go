package errors

import "errors"

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrInvalidTable   = errors.New("remap table failed validation")
	ErrTableNotLoaded = errors.New("no remap table loaded")
	ErrInvalidCompose = errors.New("compose file is malformed")
)
