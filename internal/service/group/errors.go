package group

import "errors"

// Sentinel errors for the group service layer.
var (
	ErrNotFound        = errors.New("group not found")
	ErrContactNotFound = errors.New("contact not found")
	ErrDuplicateName   = errors.New("group name already exists")
	ErrInvalidInput    = errors.New("invalid group input")
)
