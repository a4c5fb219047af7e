package models

import "errors"

var (
	// ErrInsufficientInput is returned when an evaluation receives no opinions.
	ErrInsufficientInput = errors.New("insufficient input")
	// ErrInvalidOpinion is returned for malformed module opinions or weights.
	ErrInvalidOpinion = errors.New("invalid opinion")
	// ErrInvalidConfig is returned when a risk configuration is out of range.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrUnknownRecord is returned when resolving a prediction that was never recorded.
	ErrUnknownRecord = errors.New("unknown record")
	// ErrInvalidSignal is returned when a signal cannot be reviewed (bad price, equity or action).
	ErrInvalidSignal = errors.New("invalid signal")
	// ErrInvalidEnum is returned when text does not name a known enum value.
	ErrInvalidEnum = errors.New("invalid enum value")
)
