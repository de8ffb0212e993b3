package models

import "errors"

// Validation errors.
var (
	ErrSignatureRequired = errors.New("gpu signature is required")
	ErrInvalidDirection  = errors.New("invalid direction: must be 'encode' or 'decode'")
	ErrInvalidDriver     = errors.New("invalid driver")
	ErrInvalidCodec      = errors.New("invalid codec")
)

// ErrExclusionNotFound is returned when removing a pair that is not stored.
var ErrExclusionNotFound = errors.New("exclusion not found")
