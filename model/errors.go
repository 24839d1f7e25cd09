package model

import "errors"

var (
	// ErrValidation marks empty or malformed input.
	ErrValidation = errors.New("validation error")
	// ErrInvalidOperation marks an operation that is illegal for the message role.
	ErrInvalidOperation = errors.New("invalid operation")
	ErrNotFound         = errors.New("not found")
	// ErrPermissionDenied is returned when a record exists but belongs to another user.
	ErrPermissionDenied = errors.New("permission denied")
)
