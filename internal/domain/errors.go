package domain

import "errors"

// Sentinel errors shared by storage, services and the HTTP layer.
var (
	ErrNotFound           = errors.New("not found")
	ErrConfigNotFound     = errors.New("configuration not found")
	ErrMissingLookupValue = errors.New("missing lookup value")
	ErrInvalidRule        = errors.New("invalid submission rule")
	ErrInvalidField       = errors.New("invalid form field")
	ErrInvalidInput       = errors.New("invalid input")
	ErrAccessDenied       = errors.New("access denied")
)
