package user

import "errors"

// Sentinel errors for the user service layer.
var (
	ErrNotFound      = errors.New("user not found")
	ErrDuplicateUser = errors.New("username or email already exists")
	ErrInvalidInput  = errors.New("invalid user input")
)
