package campaign

import "errors"

// Sentinel errors for the campaign service layer.
var (
	ErrNotFound           = errors.New("campaign not found")
	ErrMissingGroup       = errors.New("campaign is missing a target group")
	ErrConfiguration      = errors.New("delivery is not configured")
	ErrAlreadyDispatching = errors.New("campaign is already being dispatched")
	ErrInvalidInput       = errors.New("invalid campaign input")
	ErrNotDue             = errors.New("campaign is no longer scheduled")
	ErrLeaseLost          = errors.New("dispatch lock lost")
)
